package interpose

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current atomic.Pointer[zap.Logger]
)

func init() {
	current.Store(zap.NewNop())
}

// SetLogger replaces the runtime's logger. nil discards output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// SetDebug switches loggers built by NewLogger between debug and info.
func SetDebug(x bool) {
	if x {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

func logger() *zap.Logger {
	return current.Load()
}

// NewLogger builds a logger from the [log] section of the config.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level.SetLevel(lvl)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "console"
	zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}
	return zc.Build()
}
