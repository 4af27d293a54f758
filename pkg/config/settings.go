package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDSettings is the identifier for the persisted CLI settings
	// section.
	SectionIDSettings = "settings"
)

// Settings holds the persisted CLI preferences. Selector and phrase tables
// live in Profile, not here: they are versioned host knowledge, not user
// preferences.
type Settings struct {
	DefaultURL  string `json:"default_url"`
	Headless    bool   `json:"headless"`
	ProfilePath string `json:"profile_path"`
	mu          sync.RWMutex
	store       Store
}

// LoadSettings reads the settings section from the store, applying defaults
// for missing keys.
func LoadSettings(store Store) (*Settings, error) {
	data, err := store.GetSection(SectionIDSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings section: %w", err)
	}

	s := &Settings{
		DefaultURL: "https://www.youtube.com",
		Headless:   false,
		store:      store,
	}
	for key, value := range data {
		switch key {
		case "default_url":
			if v, ok := value.(string); ok {
				s.DefaultURL = v
			}
		case "headless":
			if v, ok := value.(bool); ok {
				s.Headless = v
			}
		case "profile_path":
			if v, ok := value.(string); ok {
				s.ProfilePath = v
			}
		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
	}
	return s, nil
}

// Save writes the settings back through the store.
func (s *Settings) Save() error {
	s.mu.RLock()
	data := map[string]interface{}{
		"default_url":  s.DefaultURL,
		"headless":     s.Headless,
		"profile_path": s.ProfilePath,
	}
	s.mu.RUnlock()

	if err := s.store.SetSection(SectionIDSettings, data); err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}
	return s.store.Save()
}

// SetDefaultURL updates the default page URL.
func (s *Settings) SetDefaultURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DefaultURL = url
}

// SetProfilePath updates the persisted profile override path.
func (s *Settings) SetProfilePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfilePath = path
}
