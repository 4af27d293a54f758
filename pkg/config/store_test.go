package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.False(t, store.IsModified())

	require.NoError(t, store.SetSection("settings", map[string]interface{}{
		"default_url": "https://www.youtube.com/feed",
		"headless":    true,
	}))
	assert.True(t, store.IsModified())
	require.NoError(t, store.Save())
	assert.False(t, store.IsModified())

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	section, err := reloaded.GetSection("settings")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/feed", section["default_url"])
	assert.Equal(t, true, section["headless"])
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nothing.json"))
	require.NoError(t, err)

	section, err := store.GetSection("settings")
	require.NoError(t, err)
	assert.Empty(t, section)
}

func TestFileStoreCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestGetSectionReturnsCopy(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, store.SetSection("s", map[string]interface{}{"k": "v"}))

	section, err := store.GetSection("s")
	require.NoError(t, err)
	section["k"] = "mutated"

	again, err := store.GetSection("s")
	require.NoError(t, err)
	assert.Equal(t, "v", again["k"])
}

func TestSettingsDefaultsAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	settings, err := LoadSettings(store)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com", settings.DefaultURL)
	assert.False(t, settings.Headless)
	assert.Empty(t, settings.ProfilePath)

	settings.SetDefaultURL("https://www.youtube.com/feed/subscriptions")
	settings.SetProfilePath("/tmp/profile.yaml")
	require.NoError(t, settings.Save())

	store2, err := NewFileStore(path)
	require.NoError(t, err)
	loaded, err := LoadSettings(store2)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/feed/subscriptions", loaded.DefaultURL)
	assert.Equal(t, "/tmp/profile.yaml", loaded.ProfilePath)
}

func TestSettingsIgnoresUnknownKeys(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, store.SetSection(SectionIDSettings, map[string]interface{}{
		"default_url": "https://www.youtube.com/a",
		"future_key":  "whatever",
		"headless":    "not-a-bool",
	}))

	settings, err := LoadSettings(store)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/a", settings.DefaultURL)
	assert.False(t, settings.Headless)
}
