package interpose

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSetDebug(t *testing.T) {
	t.Cleanup(func() { SetDebug(false) })

	l, err := NewLogger(LogConfig{})
	if err != nil {
		t.Fatal(err)
	}
	SetDebug(true)
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug enabled")
	}
	SetDebug(false)
	if l.Core().Enabled(zapcore.DebugLevel) || !l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info level")
	}
}
