// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetOutputFiltersByLevel(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { logger.Store(prev) })

	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)

	Debug("hidden", "k", 1)
	Info("stage done", "stage", "IdeaAgent")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "stage done")
	assert.Contains(t, out, "stage=IdeaAgent")
}
