package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlogAdapter(t *testing.T) {
	t.Run("nil falls back to default", func(t *testing.T) {
		adapter := NewSlogAdapter(nil)
		require.NotNil(t, adapter)
		assert.Equal(t, slog.Default(), adapter.Logger())
	})

	t.Run("wraps given logger", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
		adapter := NewSlogAdapter(logger)
		assert.Same(t, logger, adapter.Logger())
	})
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Debug("debug message", "key", "value")
	adapter.Info("info message")
	adapter.Warn("warn message")
	adapter.Error("error message")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=\"debug message\" key=value")
	assert.Contains(t, out, "level=INFO msg=\"info message\"")
	assert.Contains(t, out, "level=WARN msg=\"warn message\"")
	assert.Contains(t, out, "level=ERROR msg=\"error message\"")
}

func TestDiscard(t *testing.T) {
	var _ Logger = Discard()
	Discard().Error("dropped", "key", "value")
}
