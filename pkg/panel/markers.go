package panel

import "github.com/entrhq/panelist/pkg/dom"

// Enhancement marker attributes. The host reuses and recycles containers,
// so every node the engine touches is tagged: markers make attach
// idempotent, let a later session detect residue from an earlier one, and
// let the interception policy distinguish the engine's own synthetic
// interactions from user input.
const (
	// attrProcessed marks a panel that currently has an active session.
	attrProcessed = "data-plst-processed"

	// attrDecorated marks a row the engine has decorated.
	attrDecorated = "data-plst-decorated"

	// attrInjected marks nodes the engine created (search box, footer,
	// no-results affordance). Scrubbed wholesale on cleanup.
	attrInjected = "data-plst-ui"

	// attrApplyPass marks a row while a synthetic interaction is replayed
	// into it, so the interception scope lets the event through to the
	// host instead of treating it as a user toggle.
	attrApplyPass = "data-plst-apply"
)

// hasResidualMarkers reports whether el still carries enhancement artifacts
// from a previous session. The host may hand the same container to
// different logical panels; residue means a stale overlay could be showing.
func hasResidualMarkers(el dom.Element) bool {
	if _, ok := el.Attr(attrProcessed); ok {
		return true
	}
	if _, ok := el.Query("[" + attrProcessed + "]"); ok {
		return true
	}
	if _, ok := el.Query("[" + attrInjected + "]"); ok {
		return true
	}
	if _, ok := el.Query("[" + attrDecorated + "]"); ok {
		return true
	}
	return false
}

// scrubMarkers removes all enhancement artifacts under el: injected nodes
// are detached, marker attributes are stripped. Safe on a panel with no
// residue.
func scrubMarkers(el dom.Element) {
	for _, injected := range el.QueryAll("[" + attrInjected + "]") {
		_ = injected.Remove()
	}
	for _, decorated := range el.QueryAll("[" + attrDecorated + "]") {
		_ = decorated.RemoveStyle("outline")
		_ = decorated.RemoveStyle("display")
		_ = decorated.RemoveAttr(attrDecorated)
	}
	for _, marked := range el.QueryAll("[" + attrApplyPass + "]") {
		_ = marked.RemoveAttr(attrApplyPass)
	}
	for _, marked := range el.QueryAll("[" + attrProcessed + "]") {
		_ = marked.RemoveAttr(attrProcessed)
	}
	_ = el.RemoveAttr(attrProcessed)
}
