package pwdom

import (
	"fmt"

	"github.com/entrhq/panelist/pkg/dom"
)

// element is a handle into the in-page ref registry. Handles stay valid
// until the registry is lost to a full page load; operations on refs the
// registry no longer knows report ErrDetached.
type element struct {
	page *Page
	ref  string
}

func (e *element) Ref() string {
	return e.ref
}

func (e *element) Tag() string {
	raw, err := e.page.pw.Evaluate(`(a) => window.__plst.tag(a.ref)`, e.arg())
	if err != nil {
		return ""
	}
	return asString(raw)
}

func (e *element) Attr(name string) (string, bool) {
	raw, err := e.page.pw.Evaluate(`(a) => window.__plst.attr(a.ref, a.name)`,
		map[string]interface{}{"ref": e.ref, "name": name})
	if err != nil || raw == nil {
		return "", false
	}
	rec, ok := raw.(map[string]interface{})
	if !ok {
		return "", false
	}
	return asString(rec["value"]), true
}

func (e *element) SetAttr(name, value string) error {
	return e.mutate(`(a) => window.__plst.setAttr(a.ref, a.name, a.value)`,
		map[string]interface{}{"ref": e.ref, "name": name, "value": value})
}

func (e *element) RemoveAttr(name string) error {
	return e.mutate(`(a) => window.__plst.removeAttr(a.ref, a.name)`,
		map[string]interface{}{"ref": e.ref, "name": name})
}

func (e *element) Text() string {
	raw, err := e.page.pw.Evaluate(`(a) => window.__plst.text(a.ref)`, e.arg())
	if err != nil {
		return ""
	}
	return asString(raw)
}

func (e *element) SetText(text string) error {
	return e.mutate(`(a) => window.__plst.setText(a.ref, a.text)`,
		map[string]interface{}{"ref": e.ref, "text": text})
}

func (e *element) Query(selector string) (dom.Element, bool) {
	return e.page.queryUnder(e.ref, selector)
}

func (e *element) QueryAll(selector string) []dom.Element {
	return e.page.queryAllUnder(e.ref, selector)
}

func (e *element) Parent() (dom.Element, bool) {
	raw, err := e.page.pw.Evaluate(`(a) => window.__plst.parent(a.ref)`, e.arg())
	if err != nil || raw == nil {
		return nil, false
	}
	return &element{page: e.page, ref: asString(raw)}, true
}

func (e *element) SetStyle(property, value string) error {
	return e.mutate(`(a) => window.__plst.setStyle(a.ref, a.prop, a.value)`,
		map[string]interface{}{"ref": e.ref, "prop": property, "value": value})
}

func (e *element) RemoveStyle(property string) error {
	return e.mutate(`(a) => window.__plst.removeStyle(a.ref, a.prop)`,
		map[string]interface{}{"ref": e.ref, "prop": property})
}

func (e *element) Click() error {
	return e.mutate(`(a) => window.__plst.click(a.ref)`, e.arg())
}

func (e *element) Append(child dom.Element) error {
	c, err := e.page.own(child)
	if err != nil {
		return err
	}
	return e.mutate(`(a) => window.__plst.append(a.ref, a.child)`,
		map[string]interface{}{"ref": e.ref, "child": c.ref})
}

func (e *element) Remove() error {
	return e.mutate(`(a) => window.__plst.remove(a.ref)`, e.arg())
}

func (e *element) Attached() bool {
	raw, err := e.page.pw.Evaluate(`(a) => window.__plst.attached(a.ref)`, e.arg())
	if err != nil {
		return false
	}
	attached, _ := raw.(bool)
	return attached
}

func (e *element) arg() map[string]interface{} {
	return map[string]interface{}{"ref": e.ref}
}

// mutate runs a runtime helper that reports success as a boolean; false
// means the registry lost the node.
func (e *element) mutate(js string, arg map[string]interface{}) error {
	raw, err := e.page.pw.Evaluate(js, arg)
	if err != nil {
		return fmt.Errorf("page evaluation failed: %w", err)
	}
	if ok, _ := raw.(bool); !ok {
		return dom.ErrDetached
	}
	return nil
}
