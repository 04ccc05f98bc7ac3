package internal

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_LevelParsing(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, -8},
		{"DEBUG", slog.LevelDebug, -8}, // case-insensitive
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"nonsense", slog.LevelInfo, slog.LevelDebug}, // falls back to info
		{"", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			logger := NewLogger(&bytes.Buffer{}, "development", tc.level)
			ctx := context.Background()
			if !logger.Enabled(ctx, tc.enabled) {
				t.Errorf("level %q should enable %v", tc.level, tc.enabled)
			}
			if logger.Enabled(ctx, tc.muted) {
				t.Errorf("level %q should mute %v", tc.level, tc.muted)
			}
		})
	}
}

func TestNewLogger_HandlerByEnv(t *testing.T) {
	var dev bytes.Buffer
	NewLogger(&dev, "development", "info").Info("hello")
	if strings.Contains(dev.String(), "{") {
		t.Errorf("development output should be text, got %q", dev.String())
	}

	var prod bytes.Buffer
	NewLogger(&prod, "production", "info").Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(prod.String()), "{") {
		t.Errorf("production output should be JSON, got %q", prod.String())
	}
}
