// Package logging builds the zap logger used across sysglance.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Dicklesworthstone/sysglance/internal/config"
)

// New returns a production zap logger at the configured level. Logs go to
// cfg.LogFile when set. Without a log file, interactive mode gets a no-op
// logger so log lines never land on the terminal UI, and stream mode logs
// to stderr so stdout carries only snapshots.
func New(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogFile == "" && !cfg.JSONStream {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(level)
	loggerConfig.Sampling = nil
	loggerConfig.OutputPaths = []string{"stderr"}
	if cfg.LogFile != "" {
		loggerConfig.OutputPaths = []string{cfg.LogFile}
	}
	return loggerConfig.Build()
}
