package panel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom"
	"github.com/entrhq/panelist/pkg/logging"
)

// Item is one selectable row in the target panel.
//
// original is immutable for the lifetime of one open cycle of the panel;
// only Refresh rewrites it. Items are discarded with their session, never
// reused across panel opens.
type Item struct {
	// Row is the host element backing this item.
	Row dom.Element

	// Name is the display name extracted from the row's first non-empty
	// text line.
	Name string

	current  bool
	original bool
	hidden   bool
}

// Selected reports the item's current selection state.
func (i *Item) Selected() bool { return i.current }

// OriginallySelected reports the state observed when the item was first
// tracked (or last refreshed).
func (i *Item) OriginallySelected() bool { return i.original }

// ApplyResult summarizes a finished batch apply. The host gives no reliable
// per-item success signal, so counts are attempts, not confirmations.
type ApplyResult struct {
	Added   int
	Removed int
	Err     error
}

type applyStep struct {
	item *Item
	add  bool
}

// Selection tracks, per open panel, each row's current and
// originally-observed selection state, computes the diff between them, and
// replays that diff into the host UI through synthesized interactions.
//
// All methods assume the caller holds the engine lock; internal timer
// callbacks acquire it themselves.
type Selection struct {
	host     dom.Host
	resolver *Resolver
	profile  *config.Profile
	visual   Visual
	sched    Scheduler
	lock     *sync.Mutex
	log      *logging.Logger

	panel dom.Element
	list  dom.Element

	items []*Item
	byRef map[string]*Item

	cancelRowWatch dom.CancelFunc

	saving      bool
	applyQueue  []applyStep
	applyIndex  int
	applyErrs   []error
	applyDone   func(ApplyResult)
	cancelApply func()
}

// newSelection scans the panel's current rows and starts watching for rows
// the host adds later (lazy loading, playlist creation). Newly appearing
// rows get the same inference and decoration as the initial scan.
func newSelection(host dom.Host, resolver *Resolver, profile *config.Profile, visual Visual,
	sched Scheduler, lock *sync.Mutex, log *logging.Logger, panel dom.Element) (*Selection, error) {

	list, ok := resolver.Resolve(panel, config.RoleListContainer)
	if !ok {
		// Degrade to scanning the whole panel; some host variants inline
		// rows without a dedicated container.
		list = panel
	}

	s := &Selection{
		host:     host,
		resolver: resolver,
		profile:  profile,
		visual:   visual,
		sched:    sched,
		lock:     lock,
		log:      log,
		panel:    panel,
		list:     list,
		byRef:    make(map[string]*Item),
	}

	s.scanNewRows()
	if len(s.items) == 0 {
		return nil, fmt.Errorf("no list items found in panel")
	}

	cancel, err := host.WatchChildren(list, func(added []dom.Element) {
		// The engine's own injected nodes land in the watched subtree too,
		// sometimes appended while the engine lock is already held. Only
		// host-added nodes warrant a rescan.
		hostAdded := false
		for _, el := range added {
			if _, injected := el.Attr(attrInjected); !injected {
				hostAdded = true
				break
			}
		}
		if !hostAdded {
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		s.scanNewRows()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch for new rows: %w", err)
	}
	s.cancelRowWatch = cancel

	return s, nil
}

// scanNewRows tracks rows not seen before, leaving existing items
// untouched. Insertion order follows document order on first sight.
func (s *Selection) scanNewRows() {
	rows := s.resolver.ResolveAll(s.panel, config.RoleListItem)
	for _, row := range rows {
		if _, seen := s.byRef[row.Ref()]; seen {
			continue
		}
		selected := s.inferOriginal(row)
		item := &Item{
			Row:      row,
			Name:     displayName(row),
			current:  selected,
			original: selected,
		}
		s.items = append(s.items, item)
		s.byRef[row.Ref()] = item
		if err := s.visual.DecorateItem(row, selected); err != nil {
			s.log.Debugf("failed to decorate row %q: %v", item.Name, err)
		}
	}
}

// inferOriginal determines whether the host already has this row selected.
// A semantic checked role is trusted when present; otherwise the shape of
// the bookmark icon decides — a glyph path signature distinguishing the
// filled variant from the outline. The host exposes no other signal.
func (s *Selection) inferOriginal(row dom.Element) bool {
	if toggle, ok := s.resolver.Resolve(row, config.RoleItemToggle); ok {
		if v, ok := toggle.Attr("aria-checked"); ok {
			return v == "true"
		}
		if v, ok := toggle.Attr("checked"); ok {
			return v != "false"
		}
	}

	for _, icon := range s.resolver.ResolveAll(row, config.RoleItemIcon) {
		d, ok := icon.Attr("d")
		if !ok {
			continue
		}
		for _, signature := range s.profile.FilledIconPaths {
			if strings.HasPrefix(d, signature) {
				return true
			}
		}
	}
	return false
}

// Items returns the tracked items in insertion order.
func (s *Selection) Items() []*Item {
	out := make([]*Item, len(s.items))
	copy(out, s.items)
	return out
}

// ItemForTarget resolves an event target to the item whose row contains it.
func (s *Selection) ItemForTarget(target dom.Element) (*Item, bool) {
	for cur := target; cur != nil; {
		if item, ok := s.byRef[cur.Ref()]; ok {
			return item, true
		}
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	return nil, false
}

// Toggle flips the item's current selection and re-renders its indicator.
// It never touches the originally-observed state. Rejected while a batch
// apply is running.
func (s *Selection) Toggle(item *Item) error {
	if s.saving {
		return ErrSaveInProgress
	}
	item.current = !item.current
	if err := s.visual.DecorateItem(item.Row, item.current); err != nil {
		s.log.Debugf("failed to redecorate row %q: %v", item.Name, err)
	}
	return nil
}

// Refresh re-runs original-state inference for every tracked item and
// resets both states to the freshly observed value. Used when the same
// panel instance reopens and the host's underlying state may have changed
// through another surface since last tracked.
func (s *Selection) Refresh() {
	for _, item := range s.items {
		selected := s.inferOriginal(item.Row)
		item.current = selected
		item.original = selected
		if err := s.visual.DecorateItem(item.Row, selected); err != nil {
			s.log.Debugf("failed to redecorate row %q: %v", item.Name, err)
		}
	}
}

// SelectedCount returns how many items are currently selected.
func (s *Selection) SelectedCount() int {
	n := 0
	for _, item := range s.items {
		if item.current {
			n++
		}
	}
	return n
}

// ItemsToAdd returns items toggled on that the host does not have selected.
func (s *Selection) ItemsToAdd() []*Item {
	var out []*Item
	for _, item := range s.items {
		if item.current && !item.original {
			out = append(out, item)
		}
	}
	return out
}

// ItemsToRemove returns items toggled off that the host has selected.
func (s *Selection) ItemsToRemove() []*Item {
	var out []*Item
	for _, item := range s.items {
		if !item.current && item.original {
			out = append(out, item)
		}
	}
	return out
}

// Saving reports whether a batch apply is currently running.
func (s *Selection) Saving() bool {
	return s.saving
}

// Apply replays the current diff into the host UI: adds first, then
// removes, one synthetic interaction per item with a fixed delay between
// them — the host's handling of rapid consecutive synthetic input is
// asynchronous and rate-sensitive, and omitting the spacing causes missed
// updates. done runs under the engine lock when the batch finishes.
//
// Returns ErrSaveInProgress when a batch is already running and
// ErrNoChanges on a net-zero diff; done is not invoked in either case.
func (s *Selection) Apply(done func(ApplyResult)) error {
	if s.saving {
		return ErrSaveInProgress
	}

	adds := s.ItemsToAdd()
	removes := s.ItemsToRemove()
	if len(adds)+len(removes) == 0 {
		return ErrNoChanges
	}

	queue := make([]applyStep, 0, len(adds)+len(removes))
	for _, item := range adds {
		queue = append(queue, applyStep{item: item, add: true})
	}
	for _, item := range removes {
		queue = append(queue, applyStep{item: item, add: false})
	}

	s.saving = true
	s.applyQueue = queue
	s.applyIndex = 0
	s.applyErrs = nil
	s.applyDone = done
	s.applyNext()
	return nil
}

// applyNext processes one step and schedules the next. Runs under the
// engine lock.
func (s *Selection) applyNext() {
	if s.applyIndex >= len(s.applyQueue) {
		s.finishApply()
		return
	}

	step := s.applyQueue[s.applyIndex]
	s.applyIndex++
	if err := s.applyItem(step.item); err != nil {
		// No reliable per-item failure signal exists beyond this; the
		// aggregate result carries it.
		s.log.Warnf("apply step failed for %q: %v", step.item.Name, err)
		s.applyErrs = append(s.applyErrs, fmt.Errorf("%s: %w", step.item.Name, err))
	}

	s.cancelApply = s.sched.After(s.profile.Timing.ApplyStepDelay, func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		if !s.saving {
			return // torn down mid-batch
		}
		s.applyNext()
	})
}

// applyItem synthesizes one interaction on the row's host-provided
// clickable sub-element, marking the row so the interception scope lets the
// synthetic event through to the host instead of treating it as a user
// toggle.
func (s *Selection) applyItem(item *Item) error {
	if !item.Row.Attached() {
		return dom.ErrDetached
	}

	target, ok := s.resolver.Resolve(item.Row, config.RoleItemToggle)
	if !ok {
		target = item.Row
	}

	if err := item.Row.SetAttr(attrApplyPass, "1"); err != nil {
		return fmt.Errorf("failed to mark row for passthrough: %w", err)
	}
	defer func() {
		_ = item.Row.RemoveAttr(attrApplyPass)
	}()

	if err := target.Click(); err != nil {
		return fmt.Errorf("synthetic click failed: %w", err)
	}
	return nil
}

// finishApply releases the saving gate, resets the baseline on success so a
// subsequent diff is empty, and reports the aggregate result.
func (s *Selection) finishApply() {
	result := ApplyResult{}
	for _, step := range s.applyQueue {
		if step.add {
			result.Added++
		} else {
			result.Removed++
		}
	}
	if len(s.applyErrs) > 0 {
		result.Err = fmt.Errorf("%d of %d updates failed: %v",
			len(s.applyErrs), len(s.applyQueue), s.applyErrs[0])
	} else {
		for _, item := range s.items {
			item.original = item.current
		}
	}

	done := s.applyDone
	s.saving = false
	s.applyQueue = nil
	s.applyIndex = 0
	s.applyErrs = nil
	s.applyDone = nil
	s.cancelApply = nil

	if done != nil {
		done(result)
	}
}

// destroy stops row watching and any in-flight apply chain. Row decoration
// removal is the lifecycle manager's marker scrub.
func (s *Selection) destroy() {
	if s.cancelRowWatch != nil {
		s.cancelRowWatch()
		s.cancelRowWatch = nil
	}
	if s.cancelApply != nil {
		s.cancelApply()
		s.cancelApply = nil
	}
	s.saving = false
	s.items = nil
	s.byRef = map[string]*Item{}
}

// PlaylistNames extracts the display names of every playlist row in the
// document. Used for offline inspection of captured markup.
func PlaylistNames(doc dom.Document, profile *config.Profile) []string {
	resolver := NewResolver(profile)
	var names []string
	for _, row := range resolver.ResolveAllDoc(doc, config.RoleListItem) {
		if name := displayName(row); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// displayName extracts the row's display name: its first non-empty text
// line.
func displayName(row dom.Element) string {
	for _, line := range strings.Split(row.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
