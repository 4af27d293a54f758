package logging

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToSessionFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	logger, err := NewLogger("test-component")
	if err != nil {
		// Directory initialization is process-global; an earlier test run
		// may have pinned it elsewhere.
		t.Skipf("file logging unavailable: %v", err)
	}
	defer logger.Close()

	logger.Infof("hello %s", "world")
	logger.Errorf("boom")

	data, err := os.ReadFile(logger.LogPath())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[test-component]")
	assert.Contains(t, content, "[INFO] hello world")
	assert.Contains(t, content, "[ERROR] boom")
}

func TestSessionIDIsStable(t *testing.T) {
	first := GetSessionID()
	second := GetSessionID()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
	assert.Len(t, strings.Split(first, "-"), 5)
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := Nop()
	logger.Debugf("a")
	logger.Infof("b")
	logger.Warnf("c")
	logger.Errorf("d")
	require.NoError(t, logger.Close())
	assert.Empty(t, logger.LogPath())
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := Nop()
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
