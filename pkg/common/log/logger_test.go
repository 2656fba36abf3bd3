package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Messages below the level should be filtered, got: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("Messages at or above the level should be logged, got: %s", out)
	}
}

func TestFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.Info("layer %s at %d", "abc", 42)

	if !strings.Contains(buf.String(), "layer abc at 42") {
		t.Errorf("Expected formatted message, got: %s", buf.String())
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.WithField("tenant", "t1").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "tenant=t1") {
		t.Errorf("Expected field in output, got: %s", out)
	}

	// The parent logger is unchanged.
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "tenant=t1") {
		t.Errorf("Parent logger should not carry the field, got: %s", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "LEVEL(99)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level %d: got %q, want %q", tt.level, got, tt.want)
		}
	}
}
