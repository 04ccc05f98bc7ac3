package internal

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the application logger: human-readable text output in
// development, JSON elsewhere for log aggregation. Unknown levels fall back
// to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if env == "development" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
