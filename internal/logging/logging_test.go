package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Dicklesworthstone/sysglance/internal/config"
)

func TestInteractiveWithoutFileIsSilent(t *testing.T) {
	log, err := New(config.Default())
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "sysglance.log")
	cfg.LogLevel = "warn"

	log, err := New(cfg)
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "dropped")
}

func TestBadLevel(t *testing.T) {
	cfg := config.Default()
	cfg.JSONStream = true
	cfg.LogLevel = "loud"
	_, err := New(cfg)
	assert.Error(t, err)
}
