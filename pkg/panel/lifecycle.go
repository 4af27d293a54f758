package panel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom"
	"github.com/entrhq/panelist/pkg/logging"
)

// Manager owns the attach/detach cycle for panel enhancements. It holds the
// single live session slot: attach always retires the previous session
// fully before building the new one, so no two sessions coexist even
// momentarily, and repeated attach calls are safe.
type Manager struct {
	host     dom.Host
	profile  *config.Profile
	resolver *Resolver
	visual   Visual
	sched    Scheduler
	log      *logging.Logger

	mu      sync.Mutex
	session *Session
}

// NewManager builds a lifecycle manager over the given host document.
func NewManager(host dom.Host, profile *config.Profile, visual Visual,
	sched Scheduler, log *logging.Logger) *Manager {

	return &Manager{
		host:     host,
		profile:  profile,
		resolver: NewResolver(profile),
		visual:   visual,
		sched:    sched,
		log:      log,
	}
}

// Active reports whether a session is currently attached.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// ActiveSession returns the current session, or nil.
func (m *Manager) ActiveSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Attach builds a new enhancement session on the panel. Any previous
// session is torn down first, and pre-existing enhancement markers inside
// the panel are scrubbed — the host recycles containers, so residue can
// belong to a different logical panel instance.
//
// Sub-engine failures are isolated: selection failing leaves the panel
// unenhanced but intact; search failing leaves selection usable. When
// nothing could be built, the panel is left exactly as the host rendered
// it.
func (m *Manager) Attach(panel dom.Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked()
	scrubMarkers(panel)

	sess := newSession(panel)
	if err := panel.SetAttr(attrProcessed, "1"); err != nil {
		return fmt.Errorf("failed to mark panel: %w", err)
	}

	// One interception scope per session: every session-scoped listener
	// hangs off this single cancellation handle.
	cancel, err := m.host.Intercept(panel, dom.InterceptRule{
		Types:           []string{"click", "input", "keydown"},
		PassthroughAttr: attrApplyPass,
	}, m.onEvent)
	if err != nil {
		scrubMarkers(panel)
		return fmt.Errorf("failed to install interception scope: %w", err)
	}
	sess.cancelIntercept = cancel

	selection, selErr := newSelection(m.host, m.resolver, m.profile, m.visual,
		m.sched, &m.mu, m.log, panel)
	if selErr != nil {
		m.log.Errorf("selection setup failed, continuing without multiselect: %v", selErr)
	} else {
		sess.selection = selection
	}

	if sess.selection != nil && len(sess.selection.Items()) > 0 {
		search, err := newSearch(m.visual, m.sched, &m.mu, m.log, sess.selection, panel)
		if err != nil {
			m.log.Errorf("search setup failed, selection remains usable: %v", err)
		} else {
			sess.search = search
		}
	}

	if sess.selection == nil {
		// Zero enhancement: revoke interception and leave the host's
		// native behavior untouched rather than a half-broken panel.
		cancel()
		scrubMarkers(panel)
		return fmt.Errorf("enhancement setup failed: %w", selErr)
	}

	footer, err := m.visual.RenderFooter(panel)
	if err != nil {
		m.log.Warnf("footer render failed: %v", err)
	} else {
		sess.footer = footer
		_ = m.visual.UpdateCount(footer, sess.selection.SelectedCount())
	}

	m.session = sess
	m.log.Infof("session %s attached: %d items, search=%v",
		sess.ID, len(sess.selection.Items()), sess.search != nil)
	return nil
}

// Cleanup tears down the current session. Idempotent and always safe to
// call defensively; with no active session it is a no-op.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

func (m *Manager) cleanupLocked() {
	sess := m.session
	if sess == nil {
		return
	}
	m.session = nil

	// Reverse order of construction: revoke the whole interception scope
	// through its single handle, then search, then selection.
	if sess.cancelIntercept != nil {
		sess.cancelIntercept()
	}
	if sess.search != nil {
		sess.search.destroy()
	}
	if sess.selection != nil {
		sess.selection.destroy()
	}
	if sess.Panel.Attached() {
		scrubMarkers(sess.Panel)
	}
	m.log.Infof("session %s cleaned up", sess.ID)
}

// Save starts the batch apply on the active session, as if the injected
// save control had been clicked. Returns ErrNoSession when no panel is
// attached.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	m.saveLocked(m.session)
	return nil
}

// onEvent routes intercepted user input. Synthetic apply interactions never
// arrive here; the passthrough attribute lets them reach the host.
func (m *Manager) onEvent(ev dom.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session
	if sess == nil {
		return
	}

	switch ev.Type {
	case "input":
		if sess.search != nil && sess.search.ownsInput(ev.Target) {
			sess.search.SetQuery(ev.Value)
		}
	case "keydown":
		if ev.Key == "Escape" && sess.search != nil && sess.search.ownsInput(ev.Target) {
			sess.search.Clear()
		}
	case "click":
		m.onClickLocked(sess, ev.Target)
	}
}

func (m *Manager) onClickLocked(sess *Session, target dom.Element) {
	if sess.footer != nil && within(target, sess.footer.SaveButton) {
		m.saveLocked(sess)
		return
	}
	if sess.search != nil && sess.search.ownsInput(target) {
		return
	}
	if sess.selection == nil {
		return
	}
	item, ok := sess.selection.ItemForTarget(target)
	if !ok {
		return
	}
	if err := sess.selection.Toggle(item); err != nil {
		m.log.Debugf("toggle rejected: %v", err)
		return
	}
	if sess.footer != nil {
		_ = m.visual.UpdateCount(sess.footer, sess.selection.SelectedCount())
	}
}

// saveLocked starts the batch apply and handles its aggregate outcome. The
// host offers no per-item success signal, so the user sees one toast for
// the whole batch.
func (m *Manager) saveLocked(sess *Session) {
	err := sess.selection.Apply(func(result ApplyResult) {
		if result.Err != nil {
			m.log.Errorf("batch apply failed: %v", result.Err)
			_ = m.visual.Toast(ToastError, "Some playlist updates failed")
			return
		}
		_ = m.visual.Toast(ToastSuccess,
			fmt.Sprintf("Updated playlists: %d added, %d removed", result.Added, result.Removed))
		m.dismissLocked(sess)
	})
	switch {
	case errors.Is(err, ErrNoChanges):
		_ = m.visual.Toast(ToastInfo, "No changes to save")
	case errors.Is(err, ErrSaveInProgress):
		m.log.Debugf("save ignored: batch already running")
	case err != nil:
		m.log.Errorf("batch apply could not start: %v", err)
		_ = m.visual.Toast(ToastError, "Could not save playlist changes")
	}
}

// dismissLocked closes the panel through a layered fallback; no single
// dismissal affordance is guaranteed to exist.
func (m *Manager) dismissLocked(sess *Session) {
	if backdrop, ok := m.resolver.ResolveDoc(m.host, config.RoleBackdrop); ok {
		if err := backdrop.Click(); err == nil {
			return
		}
	}
	if err := m.host.PressEscape(); err == nil {
		return
	}
	if closeBtn, ok := m.resolver.Resolve(sess.Panel, config.RoleCloseButton); ok {
		_ = closeBtn.Click()
	}
}

// within reports whether target is el or a descendant of el.
func within(target, el dom.Element) bool {
	if el == nil {
		return false
	}
	for cur := target; cur != nil; {
		if cur.Ref() == el.Ref() {
			return true
		}
		parent, ok := cur.Parent()
		if !ok {
			return false
		}
		cur = parent
	}
	return false
}
