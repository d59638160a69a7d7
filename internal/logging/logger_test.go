package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
	if logger.level != LevelInfo {
		t.Errorf("expected default level Info, got %v", logger.level)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("hidden")
	logger.Info("also hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}

	logger.Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected warn message in output, got %q", buf.String())
	}
}

func TestLoggerKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("sample written", "connect_id", "Token1W", "time", 1.5)
	out := buf.String()
	if !strings.Contains(out, "connect_id=Token1W") || !strings.Contains(out, "time=1.5") {
		t.Errorf("expected key=value pairs in output, got %q", out)
	}
}

func TestLoggerCodef(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Codef(LevelError, 1001, "attach failed: %s", "Token1W")
	out := buf.String()
	if !strings.Contains(out, "(1001)") || !strings.Contains(out, "attach failed: Token1W") {
		t.Errorf("expected numeric code and message in output, got %q", out)
	}
}

func TestDefaultLoggerSingleton(t *testing.T) {
	first := Default()
	second := Default()
	if first != second {
		t.Error("Default() should return the same logger instance")
	}
}

func TestSetDefaultAndGlobalFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(nil))

	Info("global info message")
	if !strings.Contains(buf.String(), "global info message") {
		t.Errorf("expected message via global Info(), got %q", buf.String())
	}
}
