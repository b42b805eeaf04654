package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"unknown", LevelInfo}, // Default to Info
		{"", LevelInfo},        // Default to Info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	t.Run("writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		Setup(LevelInfo, &buf)

		slog.Info("test message", "key", "value")

		out := buf.String()
		if !strings.Contains(out, "test message") {
			t.Errorf("output missing message: %q", out)
		}
		if !strings.Contains(out, "key=value") {
			t.Errorf("output missing attribute: %q", out)
		}
	})

	t.Run("filters below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		Setup(LevelWarn, &buf)

		slog.Info("should be dropped")
		slog.Warn("should appear")

		out := buf.String()
		if strings.Contains(out, "should be dropped") {
			t.Errorf("info record leaked through warn level: %q", out)
		}
		if !strings.Contains(out, "should appear") {
			t.Errorf("warn record missing: %q", out)
		}
	})
}
