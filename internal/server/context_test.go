package server

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/native/memory"
)

func newTestServerContext(t *testing.T, opts ...Option) *ServerContext {
	t.Helper()
	client, err := calendar.NewClient(memory.New(),
		calendar.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	sc := NewServerContext(context.Background(), client, append([]Option{WithStore("memory", "")}, opts...)...)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestNewServerContext_Defaults(t *testing.T) {
	sc := NewServerContext(context.Background(), nil)

	assert.Nil(t, sc.Bridge())
	assert.Equal(t, time.Local, sc.Location())
	assert.Nil(t, sc.Metrics())
	assert.Nil(t, sc.AuditLogger())
	assert.False(t, sc.SearchDefaults().DaysBack.IsSet())
	assert.False(t, sc.IsShutdown())
}

func TestNewServerContext_Options(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	audit := instrumentation.NewAuditLogger(nil, instrumentation.AuditLoggingConfig{})

	sc := newTestServerContext(t,
		WithStore("caldav", "jane@example.com"),
		WithLocation(berlin),
		WithSearchDefaults(7, 14),
		WithMetrics(&instrumentation.Metrics{}),
		WithAuditLogger(audit),
	)

	assert.NotNil(t, sc.Bridge())
	assert.Equal(t, "caldav", sc.StoreName())
	assert.Equal(t, "jane@example.com", sc.Account())
	assert.Equal(t, berlin, sc.Location())
	assert.Equal(t, 7, sc.SearchDefaults().DaysBack.OrElse(0))
	assert.Equal(t, 14, sc.SearchDefaults().DaysForward.OrElse(0))
	assert.NotNil(t, sc.Metrics())
	assert.Same(t, audit, sc.AuditLogger())
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), nil)

	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)

	assert.NoError(t, sc.Shutdown(), "second shutdown is a no-op")
}
