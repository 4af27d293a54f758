package panel

import "errors"

var (
	// ErrSaveInProgress is returned when a batch apply is requested while
	// one is already running. Concurrent saves are rejected, never
	// interleaved.
	ErrSaveInProgress = errors.New("panel: save already in progress")

	// ErrNoChanges is returned when a batch apply is requested with a
	// net-zero diff.
	ErrNoChanges = errors.New("panel: no changes to apply")

	// ErrNoSession is returned by operations that need an active panel
	// session when none exists.
	ErrNoSession = errors.New("panel: no active session")
)
