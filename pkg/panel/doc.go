// Package panel implements the detection and enhancement engine for the
// host page's transient "save to playlist" sheet: a heuristic classifier
// that tells the target panel apart from lookalike panels, a lifecycle
// observer that decides when enhancements attach and tear down, and the
// selection and search engines that keep enhancement state in sync with a
// host UI that reopens, swaps content in place, and mutates asynchronously.
//
// The engine is host-agnostic: all page access goes through pkg/dom, and
// all host-specific knowledge (selectors, title phrases, timing) comes from
// a config.Profile.
package panel
