package panel

import (
	"sync"
	"time"

	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom"
	"github.com/entrhq/panelist/pkg/logging"
)

// containerPhase is the lifecycle state of one watched dropdown/overlay
// container.
type containerPhase string

const (
	phaseClosed  containerPhase = "closed"
	phaseOpening containerPhase = "opening"
	phaseOpen    containerPhase = "open"
	phaseClosing containerPhase = "closing"
)

// trackedContainer carries per-container observation state. The boolean
// flags are transient classification caches, cleared whenever the container
// starts closing.
type trackedContainer struct {
	el    dom.Element
	phase containerPhase

	cancelWatch   dom.CancelFunc
	cancelPending func()

	// deferred marks that the single allowed indeterminate re-check has
	// been scheduled; a second indeterminate forces a decision instead.
	deferred bool

	// recheckedEmpty marks that the single fallback re-check for a
	// container that opened without a candidate has been used.
	recheckedEmpty bool
}

// Observer watches the host document for panel containers appearing,
// opening, and closing, runs the classifier at the right moments, and
// drives the lifecycle manager. Transitions react to attribute-level
// signals only; style and animation churn fires many times per open/close
// and does not correlate with logical state, so it is deliberately ignored.
type Observer struct {
	host       dom.Host
	profile    *config.Profile
	resolver   *Resolver
	classifier *Classifier
	manager    *Manager
	sched      Scheduler
	log        *logging.Logger

	mu         sync.Mutex
	containers map[string]*trackedContainer

	cancelRescan func()
	rescanUntil  time.Time

	// now is swappable so tests can close the rescan window.
	now func() time.Time
}

// NewObserver builds an observer over the host document, driving manager.
func NewObserver(host dom.Host, profile *config.Profile, manager *Manager,
	sched Scheduler, log *logging.Logger) *Observer {

	resolver := NewResolver(profile)
	return &Observer{
		host:       host,
		profile:    profile,
		resolver:   resolver,
		classifier: NewClassifier(resolver, profile),
		manager:    manager,
		sched:      sched,
		log:        log,
		containers: make(map[string]*trackedContainer),
		now:        time.Now,
	}
}

// Start performs the one-time sweep of containers already present (the
// engine may come up after a panel is open) and begins the bounded periodic
// rescan that picks up containers the host creates dynamically. On pages
// outside the watch list it does nothing.
func (o *Observer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	url := o.host.URL()
	if !o.profile.MatchesPage(url) {
		o.log.Infof("page %s not watched, observer idle", url)
		return
	}

	o.sweepLocked()
	o.startRescanLocked()
}

// Stop cancels all observation and tears down any active session.
func (o *Observer) Stop() {
	o.mu.Lock()
	for _, tc := range o.containers {
		o.unwireLocked(tc)
	}
	o.containers = make(map[string]*trackedContainer)
	if o.cancelRescan != nil {
		o.cancelRescan()
		o.cancelRescan = nil
	}
	o.mu.Unlock()

	o.manager.Cleanup()
}

// HandleNavigation is invoked when the host's single-page navigation
// completes: the old session is force-torn-down and, if the new page is
// watched, observation restarts with a fresh sweep and rescan window.
func (o *Observer) HandleNavigation(url string) {
	o.log.Infof("navigation to %s", url)

	o.mu.Lock()
	for _, tc := range o.containers {
		o.unwireLocked(tc)
	}
	o.containers = make(map[string]*trackedContainer)
	if o.cancelRescan != nil {
		o.cancelRescan()
		o.cancelRescan = nil
	}
	watched := o.profile.MatchesPage(url)
	o.mu.Unlock()

	o.manager.Cleanup()

	if !watched {
		return
	}
	o.mu.Lock()
	o.sweepLocked()
	o.startRescanLocked()
	o.mu.Unlock()
}

// TrackedContainers returns how many containers are currently wired.
func (o *Observer) TrackedContainers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.containers)
}

// sweepLocked wires every container currently in the document exactly once,
// keyed by element identity, no matter how many sweeps encounter it.
func (o *Observer) sweepLocked() {
	for _, el := range o.resolver.ResolveAllDoc(o.host, config.RoleContainer) {
		if _, tracked := o.containers[el.Ref()]; tracked {
			continue
		}
		o.wireLocked(el)
	}
}

func (o *Observer) wireLocked(el dom.Element) {
	tc := &trackedContainer{el: el, phase: phaseClosed}

	cancel, err := o.host.WatchAttrs(el, []string{"opened", "aria-hidden"}, func(name, value string) {
		o.onAttrChange(tc, name, value)
	})
	if err != nil {
		o.log.Warnf("failed to watch container %s: %v", el.Ref(), err)
		return
	}
	tc.cancelWatch = cancel
	o.containers[el.Ref()] = tc

	// Startup case: the container may already be open when first wired.
	if containerOpenNow(el) {
		o.transitionLocked(tc, phaseOpening)
	}
}

func (o *Observer) unwireLocked(tc *trackedContainer) {
	if tc.cancelWatch != nil {
		tc.cancelWatch()
		tc.cancelWatch = nil
	}
	if tc.cancelPending != nil {
		tc.cancelPending()
		tc.cancelPending = nil
	}
}

// containerOpenNow derives the open/closed bit from the attribute signals.
func containerOpenNow(el dom.Element) bool {
	if v, ok := el.Attr("aria-hidden"); ok && v == "true" {
		return false
	}
	if v, ok := el.Attr("opened"); ok {
		return v != "false"
	}
	return false
}

func (o *Observer) onAttrChange(tc *trackedContainer, name, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var opening bool
	switch name {
	case "opened":
		opening = value != "" && value != "false"
	case "aria-hidden":
		opening = value != "true"
	default:
		return
	}

	if opening {
		o.transitionLocked(tc, phaseOpening)
	} else {
		o.transitionLocked(tc, phaseClosing)
	}
}

func (o *Observer) transitionLocked(tc *trackedContainer, to containerPhase) {
	if tc.phase == to {
		return
	}
	o.log.Debugf("container %s: %s -> %s", tc.el.Ref(), tc.phase, to)
	tc.phase = to

	switch to {
	case phaseOpening, phaseOpen:
		o.evaluateLocked(tc)
	case phaseClosing, phaseClosed:
		// Drop only transient classification caches. No DOM teardown
		// here: the host may be swapping content rather than truly
		// closing, and forcing teardown mid-transition interferes with
		// the host's own event handling. Teardown is triggered only by
		// an explicit no-match verdict or a fresh attach.
		tc.deferred = false
		tc.recheckedEmpty = false
		if tc.cancelPending != nil {
			tc.cancelPending()
			tc.cancelPending = nil
		}
	}
}

// evaluateLocked classifies the container's current candidate and acts on
// the verdict, scheduling bounded re-checks where the DOM has not finished
// rendering.
func (o *Observer) evaluateLocked(tc *trackedContainer) {
	if tc.cancelPending != nil {
		tc.cancelPending()
		tc.cancelPending = nil
	}

	candidate, ok := o.resolver.Resolve(tc.el, config.RoleSheet)
	if !ok {
		if tc.recheckedEmpty {
			return
		}
		tc.recheckedEmpty = true
		tc.cancelPending = o.sched.After(o.profile.Timing.FallbackDelay, func() {
			o.recheck(tc)
		})
		return
	}

	verdict := o.classifier.Classify(candidate)
	o.log.Debugf("container %s classified %s", tc.el.Ref(), verdict)

	switch verdict {
	case VerdictMatch:
		// Short settle delay; confidence is already high.
		tc.cancelPending = o.sched.After(o.profile.Timing.SettleDelay, func() {
			o.attach(tc, candidate)
		})

	case VerdictNoMatch:
		// Not the target panel. If residue from a previous session is
		// still visible, tear it down immediately so stale overlays
		// never remain; never signal "target panel opened".
		o.teardownResidueLocked(tc, candidate)

	case VerdictIndeterminate:
		if !tc.deferred {
			tc.deferred = true
			tc.cancelPending = o.sched.After(o.profile.Timing.RecheckDelay, func() {
				o.recheck(tc)
			})
			return
		}
		// Bounded retries: force a decision with the corroboration gate
		// rather than deferring again.
		if o.classifier.Corroborate(candidate) == VerdictMatch {
			tc.cancelPending = o.sched.After(o.profile.Timing.SettleDelay, func() {
				o.attach(tc, candidate)
			})
			return
		}
		o.teardownResidueLocked(tc, candidate)
	}
}

func (o *Observer) teardownResidueLocked(tc *trackedContainer, candidate dom.Element) {
	if !hasResidualMarkers(tc.el) && !hasResidualMarkers(candidate) {
		return
	}
	o.log.Infof("container %s carries residual markers, tearing down", tc.el.Ref())
	o.manager.Cleanup()
	scrubMarkers(tc.el)
}

func (o *Observer) recheck(tc *trackedContainer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tc.cancelPending = nil
	if tc.phase != phaseOpening && tc.phase != phaseOpen {
		return
	}
	o.evaluateLocked(tc)
}

func (o *Observer) attach(tc *trackedContainer, candidate dom.Element) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tc.cancelPending = nil

	// Re-validate at the point of use; the host may have removed the
	// candidate while the settle delay was pending.
	if !candidate.Attached() {
		o.log.Debugf("candidate vanished before attach")
		return
	}
	if err := o.manager.Attach(candidate); err != nil {
		o.log.Errorf("attach failed: %v", err)
		return
	}
	tc.phase = phaseOpen
}

// startRescanLocked begins the bounded periodic rescan: RescanInterval
// polling until RescanWindow elapses, then it stops on its own. Covers
// containers the host creates outside the granularity the attribute
// watchers cover.
func (o *Observer) startRescanLocked() {
	o.rescanUntil = o.now().Add(o.profile.Timing.RescanWindow)
	if o.cancelRescan != nil {
		o.cancelRescan()
	}
	o.scheduleRescanTickLocked()
}

func (o *Observer) scheduleRescanTickLocked() {
	o.cancelRescan = o.sched.After(o.profile.Timing.RescanInterval, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.now().After(o.rescanUntil) {
			o.cancelRescan = nil
			o.log.Debugf("rescan window elapsed")
			return
		}
		o.sweepLocked()
		o.scheduleRescanTickLocked()
	})
}
