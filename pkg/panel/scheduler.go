package panel

import "time"

// Scheduler schedules one-shot delayed callbacks. The engine never blocks;
// every delay (classification re-checks, debounced filtering, inter-item
// apply spacing) goes through a Scheduler so it stays responsive while the
// delay is pending, and so tests can fire timers deterministically.
type Scheduler interface {
	// After runs fn once after d. The returned cancel stops a pending
	// callback; calling it after the callback ran is a no-op.
	After(d time.Duration, fn func()) (cancel func())
}

// NewScheduler returns the wall-clock scheduler used in production.
func NewScheduler() Scheduler {
	return realScheduler{}
}

type realScheduler struct{}

func (realScheduler) After(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}
