// Package logging provides logging utilities for sniproxy using the
// standard library's slog.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level is an alias for slog.Level for convenience.
type Level = slog.Level

// Level constants matching slog levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Setup configures the default slog logger with the specified level and
// output. The zero writer selects stderr: stdout carries the inherited
// listening socket and must never be written.
func Setup(level Level, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(w, opts)
	slog.SetDefault(slog.New(handler))
}

// Default returns the default slog logger.
func Default() *slog.Logger {
	return slog.Default()
}
