// Package logging builds the slog loggers used across embedprep. JSON output
// suits the server; text output renders through charmbracelet/log for humans.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Output formats accepted by New.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New creates a logger writing to w at the given level.
// Valid levels: "debug", "info", "warn", "error".
func New(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl := ParseLevel(level)

	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           charmLevel(lvl),
	})
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func charmLevel(l slog.Level) log.Level {
	switch {
	case l <= slog.LevelDebug:
		return log.DebugLevel
	case l <= slog.LevelInfo:
		return log.InfoLevel
	case l <= slog.LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
