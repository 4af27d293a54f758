package panel

import (
	"github.com/entrhq/panelist/pkg/config"
	"github.com/entrhq/panelist/pkg/dom"
)

// Resolver maps logical roles to concrete elements through ordered query
// tiers: one primary query, then fallbacks, tried in a fixed order. It is
// pure and caches nothing; the host structure can change between calls.
type Resolver struct {
	selectors map[config.Role][]string
}

// NewResolver builds a resolver from the profile's selector tables.
func NewResolver(profile *config.Profile) *Resolver {
	return &Resolver{selectors: profile.Selectors}
}

// Resolve returns the first element under root matching any tier for the
// role, trying tiers in priority order.
func (r *Resolver) Resolve(root dom.Element, role config.Role) (dom.Element, bool) {
	for _, query := range r.selectors[role] {
		if el, ok := root.Query(query); ok {
			return el, true
		}
	}
	return nil, false
}

// ResolveAll returns all elements under root for the role. Tiers fall
// through as a single unit: the first tier yielding any results wins
// wholesale, partial results are never merged across tiers.
func (r *Resolver) ResolveAll(root dom.Element, role config.Role) []dom.Element {
	for _, query := range r.selectors[role] {
		if els := root.QueryAll(query); len(els) > 0 {
			return els
		}
	}
	return nil
}

// ResolveDoc is Resolve with the whole document as the search root.
func (r *Resolver) ResolveDoc(doc dom.Document, role config.Role) (dom.Element, bool) {
	for _, query := range r.selectors[role] {
		if el, ok := doc.Query(query); ok {
			return el, true
		}
	}
	return nil, false
}

// ResolveAllDoc is ResolveAll with the whole document as the search root.
func (r *Resolver) ResolveAllDoc(doc dom.Document, role config.Role) []dom.Element {
	for _, query := range r.selectors[role] {
		if els := doc.QueryAll(query); len(els) > 0 {
			return els
		}
	}
	return nil
}
