// Package observability provides the process-wide structured logger.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. It defaults to a no-op logger until Init is
// called so library code can log unconditionally.
var Logger = zap.NewNop()

// Init builds the process logger. Level is one of debug, info, warn, error;
// format is "json" or "console". Unknown values fall back to info/json.
func Init(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	Logger = logger
	return logger, nil
}

// Sync flushes buffered log entries. Safe to call on shutdown paths.
func Sync() {
	_ = Logger.Sync()
}
