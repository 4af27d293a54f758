// Package dom defines the abstraction the enhancement engine uses to talk
// to a host document. The host markup is an undocumented third-party
// artifact, so the interface deliberately exposes only generic read, write,
// and observe primitives; everything host-specific lives in selector tables
// owned by the caller.
//
// Two implementations exist: htmldom (static, backed by golang.org/x/net/html,
// used by tests and offline classification) and pwdom (live, backed by
// playwright-go).
package dom

import "errors"

// ErrDetached is returned by operations on an element that is no longer
// part of the document. The host recycles and removes nodes at will, so
// callers re-validate at the point of use rather than caching references.
var ErrDetached = errors.New("dom: element detached from document")

// Element is a handle to one node in the host document.
//
// A handle may outlive the node it points at. Attached reports whether the
// node is still in the document; mutating operations on a detached element
// return ErrDetached.
type Element interface {
	// Tag returns the lowercase tag name.
	Tag() string

	// Ref returns a stable identity token for this node, usable as a map
	// key. Two handles to the same node return the same Ref.
	Ref() string

	// Attr returns the value of the named attribute and whether it is set.
	Attr(name string) (string, bool)

	// SetAttr sets an attribute on the node.
	SetAttr(name, value string) error

	// RemoveAttr removes an attribute from the node.
	RemoveAttr(name string) error

	// Text returns the node's text content with surrounding whitespace
	// trimmed per text node, concatenated in document order.
	Text() string

	// SetText replaces the node's children with a single text node.
	// Only used on nodes the engine created itself.
	SetText(text string) error

	// Query returns the first descendant matching the CSS selector.
	Query(selector string) (Element, bool)

	// QueryAll returns all descendants matching the CSS selector in
	// document order.
	QueryAll(selector string) []Element

	// Parent returns the parent element, if any.
	Parent() (Element, bool)

	// SetStyle sets an inline style property with important priority, so
	// the override wins against the host's own stylesheets.
	SetStyle(property, value string) error

	// RemoveStyle removes an inline style property previously set.
	RemoveStyle(property string) error

	// Click synthesizes a click on the node.
	Click() error

	// Append attaches a child element created via Document.CreateElement.
	Append(child Element) error

	// Remove detaches the node from the document. Only used on nodes the
	// engine created itself.
	Remove() error

	// Attached reports whether the node is still part of the document.
	Attached() bool
}

// Event is a user interaction captured by an interception scope.
type Event struct {
	// Type is the event type, e.g. "click", "input", "keydown".
	Type string

	// Target is the element the event was dispatched on.
	Target Element

	// Key is the key name for keydown events.
	Key string

	// Value is the current value of the target for input events.
	Value string
}

// InterceptRule describes the capture-phase policy installed on a scope
// root. Events of the listed types originating inside the root are consumed
// before the host sees them and reported to the handler, unless the target
// or one of its ancestors within the root carries PassthroughAttr, in which
// case the event passes through to the host untouched and unreported.
type InterceptRule struct {
	Types           []string
	PassthroughAttr string
}

// CancelFunc revokes a previously installed observer or interception scope.
// Safe to call more than once.
type CancelFunc func()

// Document is the engine's view of the host page.
type Document interface {
	// URL returns the document's current location.
	URL() string

	// Query returns the first element in the document matching the selector.
	Query(selector string) (Element, bool)

	// QueryAll returns all elements in the document matching the selector.
	QueryAll(selector string) []Element

	// CreateElement creates a detached element owned by the engine.
	CreateElement(tag string) (Element, error)

	// PressEscape synthesizes an Escape keypress at the document level.
	PressEscape() error
}

// Watcher delivers structural and attribute changes from the host document.
// Callbacks may be invoked from an implementation-owned goroutine; the
// engine serializes internally.
type Watcher interface {
	// WatchAttrs invokes fn whenever one of the named attributes changes
	// on the element, including attribute removal (value "" and the
	// implementation's best-effort present flag folded into value).
	WatchAttrs(el Element, names []string, fn func(name, value string)) (CancelFunc, error)

	// WatchChildren invokes fn with elements newly added under el,
	// including nested additions.
	WatchChildren(el Element, fn func(added []Element)) (CancelFunc, error)
}

// Interceptor installs capture-phase event interception scopes.
type Interceptor interface {
	// Intercept installs the rule on root and reports consumed events to
	// fn. The returned cancel revokes the whole scope as a unit.
	Intercept(root Element, rule InterceptRule, fn func(Event)) (CancelFunc, error)
}

// Host bundles everything the enhancement engine needs from a document
// implementation.
type Host interface {
	Document
	Watcher
	Interceptor
}
