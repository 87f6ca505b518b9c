package hmmlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {

	for name, lev := range map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "Warn": LevelWarn, "error": LevelError} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, lev, got)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestConsoleLogger(t *testing.T) {

	logger, err := New("test", nil)
	require.NoError(t, err)
	logger.Debugf("console message %d", 1)
}

func TestFileLogger(t *testing.T) {

	prefix := filepath.Join(t.TempDir(), "run")
	cfg := DefaultConfig(false)
	cfg.LogPath = prefix
	cfg.LogInConsole = false
	cfg.Level = LevelWarn

	logger, err := New("est", cfg)
	require.NoError(t, err)
	logger.Infof("not written")
	logger.Warnf("log-likelihood decreased by %g", 0.5)
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(prefix + "_msg.log")
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, "[WARN]")
	assert.Contains(t, s, "est")
	assert.Contains(t, s, "log-likelihood decreased by 0.5")
	assert.NotContains(t, s, "not written")
}
