// Package pwdom implements the dom abstraction over a live page driven by
// playwright-go. An injected in-page runtime owns element identity,
// MutationObserver watchers, and capture-phase interception; the adapter
// polls the runtime's event queue and fans results out to the registered Go
// callbacks.
package pwdom

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/panelist/pkg/dom"
	"github.com/entrhq/panelist/pkg/logging"
)

// DefaultPollInterval is how often the adapter drains the in-page queue.
const DefaultPollInterval = 50 * time.Millisecond

// Page implements dom.Host over a playwright page.
type Page struct {
	pw  playwright.Page
	log *logging.Logger

	mu           sync.Mutex
	attrWatches  map[string]func(name, value string)
	childWatches map[string]func(added []dom.Element)
	scopes       map[string]func(dom.Event)
	nextID       int
	onNavigate   func(url string)
	lastURL      string

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPage wraps a playwright page and starts the poll loop. Close stops it.
func NewPage(pw playwright.Page, log *logging.Logger) (*Page, error) {
	p := &Page{
		pw:           pw,
		log:          log,
		attrWatches:  make(map[string]func(string, string)),
		childWatches: make(map[string]func([]dom.Element)),
		scopes:       make(map[string]func(dom.Event)),
		lastURL:      pw.URL(),
		stop:         make(chan struct{}),
	}
	if err := p.ensureRuntime(); err != nil {
		return nil, fmt.Errorf("failed to inject page runtime: %w", err)
	}
	go p.pollLoop()
	return p, nil
}

// OnNavigate registers the callback invoked when the page's URL changes
// between poll ticks. Single-page navigations never reload the document, so
// URL comparison is the only reliable signal.
func (p *Page) OnNavigate(fn func(url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

// Close stops the poll loop. The underlying page is owned by the caller.
func (p *Page) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Page) ensureRuntime() error {
	_, err := p.pw.Evaluate(runtimeJS)
	return err
}

func (p *Page) pollLoop() {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Page) tick() {
	// Re-inject after navigation; the guard makes this a no-op otherwise.
	if err := p.ensureRuntime(); err != nil {
		p.log.Debugf("runtime injection failed: %v", err)
		return
	}

	url := p.pw.URL()
	p.mu.Lock()
	navigated := url != p.lastURL
	p.lastURL = url
	onNav := p.onNavigate
	p.mu.Unlock()
	if navigated && onNav != nil {
		onNav(url)
	}

	raw, err := p.pw.Evaluate(`() => window.__plst.drain()`)
	if err != nil {
		p.log.Debugf("queue drain failed: %v", err)
		return
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return
	}
	for _, entry := range entries {
		rec, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		p.dispatch(rec)
	}
}

func (p *Page) dispatch(rec map[string]interface{}) {
	id := asString(rec["id"])
	switch asString(rec["kind"]) {
	case "attr":
		p.mu.Lock()
		fn := p.attrWatches[id]
		p.mu.Unlock()
		if fn != nil {
			fn(asString(rec["name"]), asString(rec["value"]))
		}
	case "child":
		p.mu.Lock()
		fn := p.childWatches[id]
		p.mu.Unlock()
		if fn == nil {
			return
		}
		refs, _ := rec["refs"].([]interface{})
		added := make([]dom.Element, 0, len(refs))
		for _, r := range refs {
			added = append(added, &element{page: p, ref: asString(r)})
		}
		if len(added) > 0 {
			fn(added)
		}
	case "event":
		p.mu.Lock()
		fn := p.scopes[id]
		p.mu.Unlock()
		if fn != nil {
			fn(dom.Event{
				Type:   asString(rec["type"]),
				Target: &element{page: p, ref: asString(rec["targetRef"])},
				Key:    asString(rec["key"]),
				Value:  asString(rec["value"]),
			})
		}
	}
}

func (p *Page) allocID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return strconv.Itoa(p.nextID)
}

// URL returns the page's current location.
func (p *Page) URL() string {
	return p.pw.URL()
}

// Query returns the first element in the document matching the selector.
func (p *Page) Query(selector string) (dom.Element, bool) {
	return p.queryUnder("", selector)
}

// QueryAll returns all elements in the document matching the selector.
func (p *Page) QueryAll(selector string) []dom.Element {
	return p.queryAllUnder("", selector)
}

func (p *Page) queryUnder(rootRef, selector string) (dom.Element, bool) {
	raw, err := p.pw.Evaluate(
		`(a) => window.__plst.query(a.root || null, a.sel)`,
		map[string]interface{}{"root": rootRef, "sel": selector})
	if err != nil || raw == nil {
		return nil, false
	}
	return &element{page: p, ref: asString(raw)}, true
}

func (p *Page) queryAllUnder(rootRef, selector string) []dom.Element {
	raw, err := p.pw.Evaluate(
		`(a) => window.__plst.queryAll(a.root || null, a.sel)`,
		map[string]interface{}{"root": rootRef, "sel": selector})
	if err != nil {
		return nil
	}
	refs, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]dom.Element, 0, len(refs))
	for _, r := range refs {
		out = append(out, &element{page: p, ref: asString(r)})
	}
	return out
}

// CreateElement creates a detached element in the page.
func (p *Page) CreateElement(tag string) (dom.Element, error) {
	raw, err := p.pw.Evaluate(`(a) => window.__plst.createElement(a.tag)`,
		map[string]interface{}{"tag": tag})
	if err != nil {
		return nil, fmt.Errorf("failed to create element: %w", err)
	}
	return &element{page: p, ref: asString(raw)}, nil
}

// PressEscape synthesizes an Escape keypress through the page keyboard.
func (p *Page) PressEscape() error {
	return p.pw.Keyboard().Press("Escape")
}

// WatchAttrs observes attribute changes on el through a MutationObserver.
func (p *Page) WatchAttrs(el dom.Element, names []string, fn func(name, value string)) (dom.CancelFunc, error) {
	e, err := p.own(el)
	if err != nil {
		return nil, err
	}
	id := p.allocID()

	raw, err := p.pw.Evaluate(
		`(a) => window.__plst.watchAttrs(a.id, a.ref, a.names)`,
		map[string]interface{}{"id": id, "ref": e.ref, "names": names})
	if err != nil {
		return nil, fmt.Errorf("failed to install attribute watcher: %w", err)
	}
	if ok, _ := raw.(bool); !ok {
		return nil, dom.ErrDetached
	}

	p.mu.Lock()
	p.attrWatches[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.attrWatches, id)
		p.mu.Unlock()
		_, _ = p.pw.Evaluate(`(a) => window.__plst.unwatchAttrs(a.id)`,
			map[string]interface{}{"id": id})
	}, nil
}

// WatchChildren observes subtree additions under el.
func (p *Page) WatchChildren(el dom.Element, fn func(added []dom.Element)) (dom.CancelFunc, error) {
	e, err := p.own(el)
	if err != nil {
		return nil, err
	}
	id := p.allocID()

	raw, err := p.pw.Evaluate(
		`(a) => window.__plst.watchChildren(a.id, a.ref)`,
		map[string]interface{}{"id": id, "ref": e.ref})
	if err != nil {
		return nil, fmt.Errorf("failed to install child watcher: %w", err)
	}
	if ok, _ := raw.(bool); !ok {
		return nil, dom.ErrDetached
	}

	p.mu.Lock()
	p.childWatches[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.childWatches, id)
		p.mu.Unlock()
		_, _ = p.pw.Evaluate(`(a) => window.__plst.unwatchChildren(a.id)`,
			map[string]interface{}{"id": id})
	}, nil
}

// Intercept installs a capture-phase interception scope rooted at root.
func (p *Page) Intercept(root dom.Element, rule dom.InterceptRule, fn func(dom.Event)) (dom.CancelFunc, error) {
	e, err := p.own(root)
	if err != nil {
		return nil, err
	}
	id := p.allocID()

	raw, err := p.pw.Evaluate(
		`(a) => window.__plst.intercept(a.id, a.ref, a.types, a.pass)`,
		map[string]interface{}{
			"id":    id,
			"ref":   e.ref,
			"types": rule.Types,
			"pass":  rule.PassthroughAttr,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to install interception scope: %w", err)
	}
	if ok, _ := raw.(bool); !ok {
		return nil, dom.ErrDetached
	}

	p.mu.Lock()
	p.scopes[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.scopes, id)
		p.mu.Unlock()
		_, _ = p.pw.Evaluate(`(a) => window.__plst.revokeIntercept(a.id)`,
			map[string]interface{}{"id": id})
	}, nil
}

func (p *Page) own(el dom.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.page != p {
		return nil, fmt.Errorf("element does not belong to this page")
	}
	return e, nil
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
