package panel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/panelist/pkg/dom"
	"github.com/entrhq/panelist/pkg/logging"
)

// Search maintains a query string and a visibility predicate over the item
// set owned by the selection engine. Filtering is debounced: it touches the
// host's rendered list and contends with the host's own layout work, so it
// runs once per typing pause rather than per keystroke.
type Search struct {
	visual    Visual
	lock      *sync.Mutex
	log       *logging.Logger
	selection *Selection
	debounce  *debouncer

	input dom.Element
	query string
}

// newSearch injects the filter input and wires the debounced re-filter.
func newSearch(visual Visual, sched Scheduler, lock *sync.Mutex, log *logging.Logger,
	selection *Selection, panel dom.Element) (*Search, error) {

	input, err := visual.RenderSearchInput(panel)
	if err != nil {
		return nil, fmt.Errorf("failed to render search input: %w", err)
	}

	return &Search{
		visual:    visual,
		lock:      lock,
		log:       log,
		selection: selection,
		debounce:  newDebouncer(sched, selection.profile.Timing.SearchDebounce),
		input:     input,
	}, nil
}

// ownsInput reports whether target is (or is inside) the injected input.
func (s *Search) ownsInput(target dom.Element) bool {
	for cur := target; cur != nil; {
		if cur.Ref() == s.input.Ref() {
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

// Query returns the active query string.
func (s *Search) Query() string {
	return s.query
}

// SetQuery updates the active query and schedules a debounced re-filter.
func (s *Search) SetQuery(query string) {
	s.query = query
	s.debounce.Do(func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.filter()
	})
}

// filter applies the current query: case-insensitive substring match on the
// extracted display names, empty query matching everything. Hiding uses an
// enforced inline override because the host's stylesheet outranks ordinary
// class toggles.
func (s *Search) filter() {
	query := strings.ToLower(strings.TrimSpace(s.query))

	visible := 0
	for _, item := range s.selection.Items() {
		match := query == "" || strings.Contains(strings.ToLower(item.Name), query)
		if match {
			visible++
		}
		s.setItemVisible(item, match)
	}

	if query != "" && visible == 0 {
		if err := s.visual.ShowNoResults(s.selection.list, s.query); err != nil {
			s.log.Debugf("failed to show no-results affordance: %v", err)
		}
		return
	}
	if err := s.visual.ClearNoResults(); err != nil {
		s.log.Debugf("failed to clear no-results affordance: %v", err)
	}
}

func (s *Search) setItemVisible(item *Item, visible bool) {
	if visible == !item.hidden {
		return
	}
	item.hidden = !visible
	var err error
	if visible {
		err = item.Row.RemoveStyle("display")
	} else {
		err = item.Row.SetStyle("display", "none")
	}
	if err != nil {
		s.log.Debugf("failed to update visibility of %q: %v", item.Name, err)
	}
}

// Clear resets the query, drops any pending re-filter, restores all items,
// and removes the no-results affordance.
func (s *Search) Clear() {
	s.debounce.Cancel()
	s.query = ""
	if s.input.Attached() {
		_ = s.input.SetAttr("value", "")
	}
	for _, item := range s.selection.Items() {
		s.setItemVisible(item, true)
	}
	if err := s.visual.ClearNoResults(); err != nil {
		s.log.Debugf("failed to clear no-results affordance: %v", err)
	}
}

// destroy cancels pending work and restores host visibility so teardown
// never leaves rows hidden.
func (s *Search) destroy() {
	s.debounce.Cancel()
	for _, item := range s.selection.Items() {
		s.setItemVisible(item, true)
	}
	_ = s.visual.ClearNoResults()
}
