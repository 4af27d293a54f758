package htmldom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/entrhq/panelist/pkg/dom"
)

// element wraps one parsed node. Handles are cheap and re-created freely;
// identity is the underlying node pointer.
type element struct {
	doc  *Doc
	node *html.Node
}

func (e *element) Tag() string {
	return strings.ToLower(e.node.Data)
}

func (e *element) Ref() string {
	return fmt.Sprintf("%p", e.node)
}

func (e *element) Attr(name string) (string, bool) {
	a := getAttr(e.node, name)
	if a == nil {
		return "", false
	}
	return a.Val, true
}

func (e *element) SetAttr(name, value string) error {
	setAttr(e.node, name, value)
	e.doc.notifyAttr(e.node, name, value)
	return nil
}

func (e *element) RemoveAttr(name string) error {
	for i := range e.node.Attr {
		if strings.EqualFold(e.node.Attr[i].Key, name) {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			e.doc.notifyAttr(e.node, name, "")
			return nil
		}
	}
	return nil
}

func (e *element) Text() string {
	var lines []string
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				lines = append(lines, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(e.node)
	return strings.Join(lines, "\n")
}

func (e *element) SetText(text string) error {
	for e.node.FirstChild != nil {
		e.node.RemoveChild(e.node.FirstChild)
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

func (e *element) Query(selector string) (dom.Element, bool) {
	return elementQuery(e.doc, e.node, selector)
}

func (e *element) QueryAll(selector string) []dom.Element {
	return elementQueryAll(e.doc, e.node, selector)
}

func (e *element) Parent() (dom.Element, bool) {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return &element{doc: e.doc, node: p}, true
		}
	}
	return nil, false
}

func (e *element) SetStyle(property, value string) error {
	props := parseStyle(attrValue(e.node, "style"))
	props = setStyleProp(props, property, value+" !important")
	setAttr(e.node, "style", renderStyle(props))
	return nil
}

func (e *element) RemoveStyle(property string) error {
	props := parseStyle(attrValue(e.node, "style"))
	out := props[:0]
	for _, p := range props {
		if !strings.EqualFold(p.name, property) {
			out = append(out, p)
		}
	}
	rendered := renderStyle(out)
	if rendered == "" {
		return e.RemoveAttr("style")
	}
	setAttr(e.node, "style", rendered)
	return nil
}

func (e *element) Click() error {
	if !e.Attached() {
		return dom.ErrDetached
	}
	consumed := e.doc.Dispatch(e, dom.Event{Type: "click"})
	if !consumed {
		e.doc.recordHostClick(e)
	}
	return nil
}

func (e *element) Append(child dom.Element) error {
	c, err := e.doc.own(child)
	if err != nil {
		return err
	}
	e.node.AppendChild(c.node)
	e.doc.notifyAdded(e.node, []dom.Element{c})
	return nil
}

func (e *element) Remove() error {
	if e.node.Parent == nil {
		return dom.ErrDetached
	}
	e.node.Parent.RemoveChild(e.node)
	return nil
}

func (e *element) Attached() bool {
	return contains(e.doc.root, e.node)
}

func setAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(name), Val: value})
}

func attrValue(n *html.Node, name string) string {
	if a := getAttr(n, name); a != nil {
		return a.Val
	}
	return ""
}

type styleProp struct {
	name  string
	value string
}

func parseStyle(style string) []styleProp {
	var props []styleProp
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		props = append(props, styleProp{
			name:  strings.TrimSpace(name),
			value: strings.TrimSpace(value),
		})
	}
	return props
}

func setStyleProp(props []styleProp, name, value string) []styleProp {
	for i := range props {
		if strings.EqualFold(props[i].name, name) {
			props[i].value = value
			return props
		}
	}
	return append(props, styleProp{name: name, value: value})
}

func renderStyle(props []styleProp) string {
	parts := make([]string, 0, len(props))
	for _, p := range props {
		parts = append(parts, p.name+": "+p.value)
	}
	return strings.Join(parts, "; ")
}
