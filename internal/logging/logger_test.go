package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled by default")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be enabled by default")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
