package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewHonorsLevel(t *testing.T) {
	log, err := New("production", "warn")
	if err != nil {
		t.Fatalf("build logger failed: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error should be enabled at warn level")
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New("development", "chatty")
	if err != nil {
		t.Fatalf("build logger failed: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) || !log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info level fallback")
	}
}
