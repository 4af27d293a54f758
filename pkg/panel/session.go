package panel

import (
	"github.com/google/uuid"

	"github.com/entrhq/panelist/pkg/dom"
)

// Session is the live state for one open instance of the target panel.
// Exactly one session is active at a time; attaching to a new panel retires
// the old session first, atomically. Sessions are never reused across panel
// opens.
type Session struct {
	// ID identifies the session in logs.
	ID string

	// Panel is the enhanced panel element.
	Panel dom.Element

	selection       *Selection
	search          *Search
	footer          *FooterControls
	cancelIntercept dom.CancelFunc
}

func newSession(panel dom.Element) *Session {
	return &Session{
		ID:    uuid.New().String(),
		Panel: panel,
	}
}

// Selection returns the session's selection engine, nil when selection
// setup failed and the session runs degraded.
func (s *Session) Selection() *Selection {
	return s.selection
}

// Search returns the session's search engine, nil when search setup failed
// or there were no items to search.
func (s *Session) Search() *Search {
	return s.search
}
