package panel

import (
	"fmt"
	"time"

	"github.com/entrhq/panelist/pkg/dom"
)

// ToastLevel grades a toast notification.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// FooterControls are the handles to the injected footer: the save control
// and the selected-count label.
type FooterControls struct {
	Root       dom.Element
	SaveButton dom.Element
	Count      dom.Element
}

// Visual is the presentational collaborator. The engine tells it what state
// to show; how that looks is out of the engine's scope, so tests can swap
// in a recorder.
type Visual interface {
	// DecorateItem marks a row's selection indicator.
	DecorateItem(row dom.Element, selected bool) error

	// RenderSearchInput injects the filter input into the panel and
	// returns it.
	RenderSearchInput(panel dom.Element) (dom.Element, error)

	// RenderFooter injects the save footer into the panel.
	RenderFooter(panel dom.Element) (*FooterControls, error)

	// UpdateCount refreshes the selected-count label.
	UpdateCount(controls *FooterControls, selected int) error

	// ShowNoResults displays the empty-result affordance under list,
	// updating it in place when already shown.
	ShowNoResults(list dom.Element, query string) error

	// ClearNoResults removes the empty-result affordance if present.
	ClearNoResults() error

	// Toast shows a transient notification.
	Toast(level ToastLevel, message string) error
}

// domVisual renders through the host document. All injected nodes carry the
// injected marker attribute so cleanup can scrub them wholesale.
type domVisual struct {
	doc       dom.Document
	sched     Scheduler
	noResults dom.Element
}

// NewDOMVisual returns the default Visual implementation rendering into the
// host document.
func NewDOMVisual(doc dom.Document, sched Scheduler) Visual {
	return &domVisual{doc: doc, sched: sched}
}

func (v *domVisual) DecorateItem(row dom.Element, selected bool) error {
	if err := row.SetAttr(attrDecorated, "1"); err != nil {
		return fmt.Errorf("failed to mark row: %w", err)
	}
	if selected {
		return row.SetStyle("outline", "2px solid #3ea6ff")
	}
	return row.RemoveStyle("outline")
}

func (v *domVisual) RenderSearchInput(panel dom.Element) (dom.Element, error) {
	input, err := v.doc.CreateElement("input")
	if err != nil {
		return nil, fmt.Errorf("failed to create search input: %w", err)
	}
	_ = input.SetAttr("type", "text")
	_ = input.SetAttr("placeholder", "Filter playlists")
	_ = input.SetAttr(attrInjected, "search")
	_ = input.SetStyle("width", "calc(100% - 16px)")
	_ = input.SetStyle("margin", "8px")
	if err := panel.Append(input); err != nil {
		return nil, fmt.Errorf("failed to inject search input: %w", err)
	}
	return input, nil
}

func (v *domVisual) RenderFooter(panel dom.Element) (*FooterControls, error) {
	root, err := v.doc.CreateElement("div")
	if err != nil {
		return nil, fmt.Errorf("failed to create footer: %w", err)
	}
	_ = root.SetAttr(attrInjected, "footer")
	_ = root.SetStyle("display", "flex")
	_ = root.SetStyle("justify-content", "space-between")
	_ = root.SetStyle("padding", "8px")

	count, err := v.doc.CreateElement("span")
	if err != nil {
		return nil, fmt.Errorf("failed to create count label: %w", err)
	}
	_ = count.SetAttr(attrInjected, "count")
	_ = count.SetText("0 selected")

	save, err := v.doc.CreateElement("button")
	if err != nil {
		return nil, fmt.Errorf("failed to create save button: %w", err)
	}
	_ = save.SetAttr(attrInjected, "save")
	_ = save.SetText("Save changes")

	if err := root.Append(count); err != nil {
		return nil, fmt.Errorf("failed to assemble footer: %w", err)
	}
	if err := root.Append(save); err != nil {
		return nil, fmt.Errorf("failed to assemble footer: %w", err)
	}
	if err := panel.Append(root); err != nil {
		return nil, fmt.Errorf("failed to inject footer: %w", err)
	}
	return &FooterControls{Root: root, SaveButton: save, Count: count}, nil
}

func (v *domVisual) UpdateCount(controls *FooterControls, selected int) error {
	if controls == nil || controls.Count == nil {
		return nil
	}
	return controls.Count.SetText(fmt.Sprintf("%d selected", selected))
}

func (v *domVisual) ShowNoResults(list dom.Element, query string) error {
	message := fmt.Sprintf("No playlists match %q", query)

	// Update in place on repeated empty-result queries.
	if v.noResults != nil && v.noResults.Attached() {
		return v.noResults.SetText(message)
	}

	el, err := v.doc.CreateElement("div")
	if err != nil {
		return fmt.Errorf("failed to create no-results element: %w", err)
	}
	_ = el.SetAttr(attrInjected, "no-results")
	_ = el.SetStyle("padding", "16px")
	_ = el.SetStyle("opacity", "0.7")
	_ = el.SetText(message)
	if err := list.Append(el); err != nil {
		return fmt.Errorf("failed to inject no-results element: %w", err)
	}
	v.noResults = el
	return nil
}

func (v *domVisual) ClearNoResults() error {
	if v.noResults == nil {
		return nil
	}
	el := v.noResults
	v.noResults = nil
	if !el.Attached() {
		return nil
	}
	return el.Remove()
}

func (v *domVisual) Toast(level ToastLevel, message string) error {
	body, ok := v.doc.Query("body")
	if !ok {
		return fmt.Errorf("no body element to host toast")
	}
	toast, err := v.doc.CreateElement("div")
	if err != nil {
		return fmt.Errorf("failed to create toast: %w", err)
	}
	_ = toast.SetAttr(attrInjected, "toast")
	_ = toast.SetAttr("data-plst-toast-level", string(level))
	_ = toast.SetStyle("position", "fixed")
	_ = toast.SetStyle("bottom", "24px")
	_ = toast.SetStyle("left", "24px")
	_ = toast.SetText(message)
	if err := body.Append(toast); err != nil {
		return fmt.Errorf("failed to inject toast: %w", err)
	}
	v.sched.After(4*time.Second, func() {
		if toast.Attached() {
			_ = toast.Remove()
		}
	})
	return nil
}
