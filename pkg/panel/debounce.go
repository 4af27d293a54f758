package panel

import (
	"sync"
	"time"
)

// debouncer coalesces rapid calls into one delayed invocation. Used by the
// search engine so filtering runs once per pause in typing rather than per
// keystroke.
type debouncer struct {
	mu     sync.Mutex
	sched  Scheduler
	delay  time.Duration
	cancel func()
}

func newDebouncer(sched Scheduler, delay time.Duration) *debouncer {
	return &debouncer{sched: sched, delay: delay}
}

// Do schedules fn after the debounce delay, replacing any pending call.
func (d *debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = d.sched.After(d.delay, fn)
}

// Cancel drops any pending call. Used during teardown so a stale filter
// never fires against a dismantled session.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
