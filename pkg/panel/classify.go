package panel

import (
	"fmt"
	"strings"

	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom"
)

// Classifier decides whether a panel candidate is the target "save to
// playlist" sheet. The host offers no stable API for this, so the verdict
// is layered best-effort pattern matching: cheap high-confidence rejections
// first, ambiguous checks last. Indeterminate strictly means "not enough
// DOM has rendered yet".
type Classifier struct {
	resolver *Resolver
	phrases  map[string]bool
}

// NewClassifier builds a classifier from the profile's phrase set.
func NewClassifier(resolver *Resolver, profile *config.Profile) *Classifier {
	phrases := make(map[string]bool, len(profile.TitlePhrases))
	for _, p := range profile.TitlePhrases {
		phrases[normalizeTitle(p)] = true
	}
	return &Classifier{resolver: resolver, phrases: phrases}
}

// Classify evaluates the candidate through the ordered layers,
// short-circuiting on the first decisive signal.
func (c *Classifier) Classify(candidate dom.Element) Verdict {
	// Layer 1: structural markers unique to the excluded context-menu
	// variant override everything. Cheap and unambiguous, so it runs
	// first.
	if c.hasContextMenuMarker(candidate) {
		return VerdictNoMatch
	}

	// Layer 2: the title. Absent means the panel may still be rendering.
	title, ok := c.resolver.Resolve(candidate, config.RoleTitle)
	if !ok {
		return VerdictIndeterminate
	}
	if !c.phrases[normalizeTitle(title.Text())] {
		return VerdictNoMatch
	}

	// Layer 3: structural presence. Content may still be streaming in.
	_, hasList := c.resolver.Resolve(candidate, config.RoleListContainer)
	_, hasItem := c.resolver.Resolve(candidate, config.RoleListItem)
	if !hasList && !hasItem {
		return VerdictIndeterminate
	}

	// Layer 4: exclusion re-check. Layer 1 may have run against a
	// partially rendered candidate where the marker had not appeared yet.
	if c.hasContextMenuMarker(candidate) {
		return VerdictNoMatch
	}

	// Layer 5: positive corroboration.
	if hasItem || c.hasCorroboration(candidate) {
		return VerdictMatch
	}
	return VerdictNoMatch
}

// Corroborate forces a decision for a candidate that stayed indeterminate
// past the bounded re-check: the corroboration gate alone decides, so the
// observer never defers a second time.
func (c *Classifier) Corroborate(candidate dom.Element) Verdict {
	if c.hasContextMenuMarker(candidate) {
		return VerdictNoMatch
	}
	if _, ok := c.resolver.Resolve(candidate, config.RoleListItem); ok {
		return VerdictMatch
	}
	if c.hasCorroboration(candidate) {
		return VerdictMatch
	}
	return VerdictNoMatch
}

func (c *Classifier) hasContextMenuMarker(candidate dom.Element) bool {
	_, ok := c.resolver.Resolve(candidate, config.RoleContextMenuMarker)
	return ok
}

func (c *Classifier) hasCorroboration(candidate dom.Element) bool {
	if _, ok := c.resolver.Resolve(candidate, config.RoleFooterCreate); ok {
		return true
	}
	if _, ok := c.resolver.Resolve(candidate, config.RoleItemIcon); ok {
		return true
	}
	return false
}

// normalizeTitle lowercases, trims, and collapses internal whitespace so
// phrase membership survives the host's formatting whims.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// ClassifyDocument locates the first panel candidate in the document and
// classifies it. Used for offline classification of captured markup.
func ClassifyDocument(doc dom.Document, profile *config.Profile) (Verdict, error) {
	resolver := NewResolver(profile)
	candidate, ok := resolver.ResolveDoc(doc, config.RoleSheet)
	if !ok {
		return VerdictNoMatch, fmt.Errorf("no panel candidate found in document")
	}
	return NewClassifier(resolver, profile).Classify(candidate), nil
}
