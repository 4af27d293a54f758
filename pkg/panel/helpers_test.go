package panel

import (
	"sync"
	"testing"
	"time"

	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom"
	"github.com/entrhq/panelist/pkg/dom/htmldom"
	"github.com/entrhq/panelist/pkg/logging"
)

// panelFixture is a trimmed-down capture of the host's save-to-playlist
// sheet: a dialog container, the panel renderer with title, three playlist
// rows (the first already selected), and the create-playlist footer.
const panelFixture = `<html><body>
<tp-yt-paper-dialog>
  <ytd-add-to-playlist-renderer>
    <div id="title">Save video to...</div>
    <div id="playlists">
      <ytd-playlist-add-to-option-renderer>
        <tp-yt-paper-checkbox aria-checked="true"></tp-yt-paper-checkbox>
        <div class="label">Watch later</div>
      </ytd-playlist-add-to-option-renderer>
      <ytd-playlist-add-to-option-renderer>
        <tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
        <div class="label">Cooking</div>
      </ytd-playlist-add-to-option-renderer>
      <ytd-playlist-add-to-option-renderer>
        <tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
        <div class="label">Guitar practice</div>
      </ytd-playlist-add-to-option-renderer>
    </div>
    <div id="create-playlist-button">Create new playlist</div>
  </ytd-add-to-playlist-renderer>
</tp-yt-paper-dialog>
</body></html>`

// contextMenuFixture is the excluded context-menu variant living in the same
// container family.
const contextMenuFixture = `<html><body>
<tp-yt-paper-dialog>
  <ytd-add-to-playlist-renderer>
    <div id="title">Save video to...</div>
    <ytd-menu-service-item-renderer>Report</ytd-menu-service-item-renderer>
  </ytd-add-to-playlist-renderer>
</tp-yt-paper-dialog>
</body></html>`

type manualTask struct {
	delay    time.Duration
	fn       func()
	canceled bool
}

// manualScheduler queues callbacks and fires them only when the test asks,
// so every delayed path runs deterministically.
type manualScheduler struct {
	mu    sync.Mutex
	queue []*manualTask
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (s *manualScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{delay: d, fn: fn}
	s.queue = append(s.queue, task)
	return func() {
		s.mu.Lock()
		task.canceled = true
		s.mu.Unlock()
	}
}

// runNext fires the oldest pending callback, skipping canceled ones. Returns
// false when nothing was pending.
func (s *manualScheduler) runNext() bool {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return false
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		if task.canceled {
			continue
		}
		task.fn()
		return true
	}
}

// runAll drains the queue, including callbacks scheduled by earlier ones.
func (s *manualScheduler) runAll() {
	for i := 0; i < 1000 && s.runNext(); i++ {
	}
}

func (s *manualScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.queue {
		if !task.canceled {
			n++
		}
	}
	return n
}

type engineFixture struct {
	doc     *htmldom.Doc
	profile *config.Profile
	sched   *manualScheduler
	manager *Manager
	panel   dom.Element
}

func newEngineFixture(t *testing.T, rawHTML string) *engineFixture {
	t.Helper()

	doc := htmldom.MustParse(rawHTML)
	doc.SetURL("https://www.youtube.com/watch?v=abc123")
	profile := config.DefaultProfile()
	sched := newManualScheduler()
	visual := NewDOMVisual(doc, sched)
	manager := NewManager(doc, profile, visual, sched, logging.Nop())

	// Container-only fixtures legitimately have no panel yet.
	panel, _ := doc.Query("ytd-add-to-playlist-renderer")

	return &engineFixture{
		doc:     doc,
		profile: profile,
		sched:   sched,
		manager: manager,
		panel:   panel,
	}
}

func (f *engineFixture) rowNamed(t *testing.T, name string) dom.Element {
	t.Helper()
	for _, row := range f.doc.QueryAll("ytd-playlist-add-to-option-renderer") {
		if displayName(row) == name {
			return row
		}
	}
	t.Fatalf("no row named %q in fixture", name)
	return nil
}

func (f *engineFixture) click(el dom.Element) bool {
	return f.doc.Dispatch(el, dom.Event{Type: "click"})
}
