// Package htmldom implements the dom abstraction over a static parsed
// document (golang.org/x/net/html). It backs unit tests and offline
// classification of captured markup: mutations and user events do not occur
// on their own, the caller triggers them explicitly through Dispatch,
// AppendHTML, and attribute setters, which fire the same watcher callbacks
// a live document would.
package htmldom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/panelist/pkg/dom"
)

// Doc is a static document implementing dom.Host.
type Doc struct {
	mu   sync.Mutex
	root *html.Node
	url  string

	attrWatches  map[int]*attrWatch
	childWatches map[int]*childWatch
	scopes       map[int]*scope
	nextID       int

	escapes    int
	hostClicks []dom.Element
}

type attrWatch struct {
	node  *html.Node
	names map[string]bool
	fn    func(name, value string)
}

type childWatch struct {
	root *html.Node
	fn   func(added []dom.Element)
}

type scope struct {
	root *html.Node
	rule dom.InterceptRule
	fn   func(dom.Event)
}

// Parse builds a Doc from raw HTML.
func Parse(rawHTML string) (*Doc, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Doc{
		root:         root,
		url:          "about:blank",
		attrWatches:  make(map[int]*attrWatch),
		childWatches: make(map[int]*childWatch),
		scopes:       make(map[int]*scope),
	}, nil
}

// MustParse is Parse for test fixtures; it panics on malformed input.
func MustParse(rawHTML string) *Doc {
	d, err := Parse(rawHTML)
	if err != nil {
		panic(err)
	}
	return d
}

// SetURL sets the value reported by URL.
func (d *Doc) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// URL returns the document's location.
func (d *Doc) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// EscapeCount returns how many Escape presses were synthesized, for
// assertions on dismissal fallbacks.
func (d *Doc) EscapeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.escapes
}

// HostClicks returns the elements whose clicks reached the host (were not
// consumed by an interception scope), in dispatch order. Used by tests to
// assert which synthetic interactions the host would have handled.
func (d *Doc) HostClicks() []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dom.Element, len(d.hostClicks))
	copy(out, d.hostClicks)
	return out
}

func (d *Doc) recordHostClick(el dom.Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hostClicks = append(d.hostClicks, el)
}

// PressEscape records an Escape keypress.
func (d *Doc) PressEscape() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.escapes++
	return nil
}

// Query returns the first element in the document matching the selector.
func (d *Doc) Query(selector string) (dom.Element, bool) {
	return elementQuery(d, d.root, selector)
}

// QueryAll returns all elements in the document matching the selector.
func (d *Doc) QueryAll(selector string) []dom.Element {
	return elementQueryAll(d, d.root, selector)
}

// CreateElement creates a detached element.
func (d *Doc) CreateElement(tag string) (dom.Element, error) {
	n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}
	return &element{doc: d, node: n}, nil
}

// WatchAttrs registers an attribute watcher on el.
func (d *Doc) WatchAttrs(el dom.Element, names []string, fn func(name, value string)) (dom.CancelFunc, error) {
	e, err := d.own(el)
	if err != nil {
		return nil, err
	}
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[strings.ToLower(n)] = true
	}

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.attrWatches[id] = &attrWatch{node: e.node, names: nameSet, fn: fn}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.attrWatches, id)
		d.mu.Unlock()
	}, nil
}

// WatchChildren registers a subtree-addition watcher on el.
func (d *Doc) WatchChildren(el dom.Element, fn func(added []dom.Element)) (dom.CancelFunc, error) {
	e, err := d.own(el)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.childWatches[id] = &childWatch{root: e.node, fn: fn}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.childWatches, id)
		d.mu.Unlock()
	}, nil
}

// Intercept installs a capture-phase interception scope on root.
func (d *Doc) Intercept(root dom.Element, rule dom.InterceptRule, fn func(dom.Event)) (dom.CancelFunc, error) {
	e, err := d.own(root)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.scopes[id] = &scope{root: e.node, rule: rule, fn: fn}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.scopes, id)
		d.mu.Unlock()
	}, nil
}

// Dispatch simulates a user event on target. It returns true when an
// interception scope consumed the event, false when the host would have
// received it.
func (d *Doc) Dispatch(target dom.Element, ev dom.Event) bool {
	e, err := d.own(target)
	if err != nil {
		return false
	}
	ev.Target = e

	d.mu.Lock()
	var matched *scope
	for _, s := range d.scopes {
		if !contains(s.root, e.node) {
			continue
		}
		if !typeListed(s.rule.Types, ev.Type) {
			continue
		}
		matched = s
		break
	}
	d.mu.Unlock()

	if matched == nil {
		return false
	}
	if matched.rule.PassthroughAttr != "" && chainHasAttr(e.node, matched.root, matched.rule.PassthroughAttr) {
		return false
	}
	matched.fn(ev)
	return true
}

// AppendHTML parses a fragment, appends the resulting elements under parent,
// and fires child watchers. It simulates the host lazily adding rows.
func (d *Doc) AppendHTML(parent dom.Element, fragment string) ([]dom.Element, error) {
	p, err := d.own(parent)
	if err != nil {
		return nil, err
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	added := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		p.node.AppendChild(n)
		added = append(added, &element{doc: d, node: n})
	}
	d.notifyAdded(p.node, added)
	return added, nil
}

func (d *Doc) notifyAdded(under *html.Node, added []dom.Element) {
	if len(added) == 0 {
		return
	}
	d.mu.Lock()
	watches := make([]*childWatch, 0, len(d.childWatches))
	for _, w := range d.childWatches {
		if contains(w.root, under) || w.root == under {
			watches = append(watches, w)
		}
	}
	d.mu.Unlock()
	for _, w := range watches {
		w.fn(added)
	}
}

func (d *Doc) notifyAttr(n *html.Node, name, value string) {
	d.mu.Lock()
	watches := make([]*attrWatch, 0)
	for _, w := range d.attrWatches {
		if w.node == n && w.names[strings.ToLower(name)] {
			watches = append(watches, w)
		}
	}
	d.mu.Unlock()
	for _, w := range watches {
		w.fn(name, value)
	}
}

func (d *Doc) own(el dom.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.doc != d {
		return nil, fmt.Errorf("element does not belong to this document")
	}
	return e, nil
}

// contains reports whether n is root or a descendant of root.
func contains(root, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

func typeListed(types []string, typ string) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

// chainHasAttr reports whether any node from n up to root carries attr.
func chainHasAttr(n, root *html.Node, attr string) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && getAttr(cur, attr) != nil {
			return true
		}
		if cur == root {
			break
		}
	}
	return false
}

func getAttr(n *html.Node, name string) *html.Attribute {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, name) {
			return &n.Attr[i]
		}
	}
	return nil
}

func elementQuery(d *Doc, root *html.Node, selector string) (dom.Element, bool) {
	matcher, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, false
	}
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n != root && matcher.Match(n) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	return &element{doc: d, node: found}, true
}

func elementQueryAll(d *Doc, root *html.Node, selector string) []dom.Element {
	matcher, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil
	}
	var out []dom.Element
	walk(root, func(n *html.Node) bool {
		if n != root && matcher.Match(n) {
			out = append(out, &element{doc: d, node: n})
		}
		return true
	})
	return out
}

// walk visits element nodes in document order; fn returning false stops.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode {
		if !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
