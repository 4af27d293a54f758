package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Role identifies a logical part of the host UI that the engine needs to
// locate. The host markup drifts, so each role maps to an ordered list of
// candidate queries rather than a single selector.
type Role string

const (
	// RoleContainer is a generic dropdown/overlay host element that panels
	// render inside.
	RoleContainer Role = "container"

	// RoleSheet is a panel candidate inside a container.
	RoleSheet Role = "sheet"

	// RoleTitle is the panel's title element.
	RoleTitle Role = "title"

	// RoleListContainer is the scrollable container holding playlist rows.
	RoleListContainer Role = "list_container"

	// RoleListItem is one selectable playlist row.
	RoleListItem Role = "list_item"

	// RoleItemToggle is the clickable sub-element of a row that flips the
	// host's own selection state.
	RoleItemToggle Role = "item_toggle"

	// RoleItemIcon is the bookmark-style icon inside a row.
	RoleItemIcon Role = "item_icon"

	// RoleFooterCreate is the footer "create new" control of the target
	// panel.
	RoleFooterCreate Role = "footer_create"

	// RoleContextMenuMarker is a structural marker unique to the excluded
	// context-menu variant of the panel family.
	RoleContextMenuMarker Role = "context_menu_marker"

	// RoleBackdrop is the dismissable overlay backdrop.
	RoleBackdrop Role = "backdrop"

	// RoleCloseButton is a labeled close control of the panel.
	RoleCloseButton Role = "close_button"
)

// Profile bundles everything host-specific: selector tables, the title
// phrase set, timing, and the pages the engine activates on. The built-in
// defaults target the known host; a YAML file can override any part without
// a rebuild, since the host markup drifts faster than releases.
type Profile struct {
	// Selectors maps each role to its query tiers: one primary query
	// followed by fallbacks, tried in order.
	Selectors map[Role][]string `yaml:"selectors"`

	// TitlePhrases is the multilingual set of full title phrases that
	// positively identify the target panel. Matching is lowercase and
	// trimmed; single generic words are deliberately absent because the
	// excluded context-menu variant shares vocabulary.
	TitlePhrases []string `yaml:"title_phrases"`

	// FilledIconPaths holds glyph path-data prefixes whose presence inside
	// a row's icon marks the row as already selected. A brittle visual
	// proxy; the host exposes no other signal when the semantic checked
	// role is missing.
	FilledIconPaths []string `yaml:"filled_icon_paths"`

	// WatchPages is a list of glob patterns over page URLs; the observer
	// only runs on matching pages.
	WatchPages []string `yaml:"watch_pages"`

	// Timing holds all engine delays.
	Timing Timing `yaml:"timing"`
}

// Timing holds the engine's delays and windows.
type Timing struct {
	// SettleDelay is applied between a confirmed match and attachment.
	// Short because confidence is already high.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// FallbackDelay is applied before re-checking a container that opened
	// with no panel candidate inside it yet.
	FallbackDelay time.Duration `yaml:"fallback_delay"`

	// RecheckDelay is applied before re-classifying an indeterminate
	// candidate.
	RecheckDelay time.Duration `yaml:"recheck_delay"`

	// ApplyStepDelay separates consecutive synthetic interactions during
	// batch apply. The host's handling of rapid synthetic input is
	// asynchronous and rate-sensitive; omitting the delay causes missed
	// updates.
	ApplyStepDelay time.Duration `yaml:"apply_step_delay"`

	// SearchDebounce delays re-filtering after a query keystroke.
	SearchDebounce time.Duration `yaml:"search_debounce"`

	// RescanWindow bounds the startup periodic rescan for dynamically
	// created containers.
	RescanWindow time.Duration `yaml:"rescan_window"`

	// RescanInterval is the polling granularity within RescanWindow.
	RescanInterval time.Duration `yaml:"rescan_interval"`
}

// UnmarshalYAML parses timing fields from duration strings ("150ms", "2s").
// Zero and missing fields are left alone so Merge keeps the defaults.
func (t *Timing) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		SettleDelay    string `yaml:"settle_delay"`
		FallbackDelay  string `yaml:"fallback_delay"`
		RecheckDelay   string `yaml:"recheck_delay"`
		ApplyStepDelay string `yaml:"apply_step_delay"`
		SearchDebounce string `yaml:"search_debounce"`
		RescanWindow   string `yaml:"rescan_window"`
		RescanInterval string `yaml:"rescan_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	fields := []struct {
		dst *time.Duration
		src string
	}{
		{&t.SettleDelay, raw.SettleDelay},
		{&t.FallbackDelay, raw.FallbackDelay},
		{&t.RecheckDelay, raw.RecheckDelay},
		{&t.ApplyStepDelay, raw.ApplyStepDelay},
		{&t.SearchDebounce, raw.SearchDebounce},
		{&t.RescanWindow, raw.RescanWindow},
		{&t.RescanInterval, raw.RescanInterval},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return nil
}

// DefaultProfile returns the built-in profile for the known host.
func DefaultProfile() *Profile {
	return &Profile{
		Selectors: map[Role][]string{
			RoleContainer: {
				"tp-yt-paper-dialog",
				"ytd-popup-container tp-yt-iron-dropdown",
			},
			RoleSheet: {
				"ytd-add-to-playlist-renderer",
				"yt-add-to-playlist-view-model",
				"ytd-browse-feed-actions-renderer",
			},
			RoleTitle: {
				"#title",
				"yt-formatted-string#title-text",
				"h2",
			},
			RoleListContainer: {
				"#playlists",
				"#items.ytd-add-to-playlist-renderer",
			},
			RoleListItem: {
				"ytd-playlist-add-to-option-renderer",
				"yt-list-item-view-model",
			},
			RoleItemToggle: {
				"tp-yt-paper-checkbox",
				"[role=checkbox]",
				"#label",
			},
			RoleItemIcon: {
				"yt-icon path",
				"svg path",
			},
			RoleFooterCreate: {
				"#create-playlist-button",
				"ytd-add-to-playlist-create-renderer",
			},
			RoleContextMenuMarker: {
				"ytd-menu-service-item-renderer",
				"tp-yt-paper-listbox#items ytd-menu-navigation-item-renderer",
			},
			RoleBackdrop: {
				"tp-yt-iron-overlay-backdrop",
			},
			RoleCloseButton: {
				"#close-button button",
				"yt-icon-button#close-button",
				"[aria-label=Cancel]",
			},
		},
		TitlePhrases: []string{
			"save video to...",
			"save video to",
			"save to playlist",
			"save to...",
			"video speichern in...",
			"enregistrer la vidéo dans...",
			"guardar el video en...",
			"salva video in...",
			"video opslaan in...",
			"сохранить видео в...",
			"動画の保存先...",
			"儲存影片至...",
			"将视频保存到...",
			"동영상을 저장할 위치...",
		},
		FilledIconPaths: []string{
			"M18 4v15.06l-5.42-3.87-.58-.42-.58.42L6 19.06V4h12",
			"M20 2H4v21l8-5.71L20 23V2z",
		},
		WatchPages: []string{
			"*://*.youtube.com/*",
			"*://youtube.com/*",
		},
		Timing: Timing{
			SettleDelay:    50 * time.Millisecond,
			FallbackDelay:  300 * time.Millisecond,
			RecheckDelay:   500 * time.Millisecond,
			ApplyStepDelay: 200 * time.Millisecond,
			SearchDebounce: 150 * time.Millisecond,
			RescanWindow:   30 * time.Second,
			RescanInterval: 1 * time.Second,
		},
	}
}

// LoadProfile reads a YAML profile file and merges it over the defaults.
// Only the keys present in the file are overridden.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var override Profile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	profile := DefaultProfile()
	profile.Merge(&override)

	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return profile, nil
}

// Merge overlays the non-empty parts of override onto p.
func (p *Profile) Merge(override *Profile) {
	for role, queries := range override.Selectors {
		if len(queries) > 0 {
			p.Selectors[role] = queries
		}
	}
	if len(override.TitlePhrases) > 0 {
		p.TitlePhrases = override.TitlePhrases
	}
	if len(override.FilledIconPaths) > 0 {
		p.FilledIconPaths = override.FilledIconPaths
	}
	if len(override.WatchPages) > 0 {
		p.WatchPages = override.WatchPages
	}
	t := &p.Timing
	o := override.Timing
	if o.SettleDelay > 0 {
		t.SettleDelay = o.SettleDelay
	}
	if o.FallbackDelay > 0 {
		t.FallbackDelay = o.FallbackDelay
	}
	if o.RecheckDelay > 0 {
		t.RecheckDelay = o.RecheckDelay
	}
	if o.ApplyStepDelay > 0 {
		t.ApplyStepDelay = o.ApplyStepDelay
	}
	if o.SearchDebounce > 0 {
		t.SearchDebounce = o.SearchDebounce
	}
	if o.RescanWindow > 0 {
		t.RescanWindow = o.RescanWindow
	}
	if o.RescanInterval > 0 {
		t.RescanInterval = o.RescanInterval
	}
}

// Validate checks that the profile can drive the engine.
func (p *Profile) Validate() error {
	required := []Role{
		RoleContainer, RoleSheet, RoleTitle,
		RoleListContainer, RoleListItem, RoleContextMenuMarker,
	}
	for _, role := range required {
		if len(p.Selectors[role]) == 0 {
			return fmt.Errorf("no selectors for required role %q", role)
		}
	}
	if len(p.TitlePhrases) == 0 {
		return fmt.Errorf("title phrase set is empty")
	}
	for _, pattern := range p.WatchPages {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid watch page pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// MatchesPage reports whether url matches any watch page pattern. An empty
// pattern list matches everything.
func (p *Profile) MatchesPage(url string) bool {
	if len(p.WatchPages) == 0 {
		return true
	}
	for _, pattern := range p.WatchPages {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		if g.Match(url) {
			return true
		}
	}
	return false
}
