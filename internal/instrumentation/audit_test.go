package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/logging"
)

func attrsByKey(attrs []slog.Attr) map[string]slog.Value {
	out := make(map[string]slog.Value, len(attrs))
	for _, a := range attrs {
		out[a.Key] = a.Value
	}
	return out
}

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("calendar_delete_event").
		WithStore("caldav", "jane@example.com").
		WithOperation(OperationRemove).
		WithTarget("Work", "evt-1")
	time.Sleep(time.Millisecond)

	ti.Complete(false, errors.New("no such event"))

	assert.False(t, ti.Success)
	assert.Equal(t, StatusError, ti.Status())
	assert.Equal(t, "no such event", ti.Error)
	assert.Positive(t, ti.Duration)

	ti.Complete(true, nil)
	assert.Equal(t, StatusSuccess, ti.Status())
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	ti := NewToolInvocation("calendar_get_event").
		WithStore("caldav", "jane@example.com").
		WithTarget("", "evt-1").
		Complete(true, nil)

	tests := []struct {
		name       string
		includePII bool
		wantUser   string
		hashedKey  bool
	}{
		{name: "user hashed", includePII: false, hashedKey: true},
		{name: "user in clear", includePII: true, wantUser: "jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attrsByKey(ti.LogAttrs(tt.includePII))

			assert.Equal(t, "calendar_get_event", got["tool"].String())
			assert.Equal(t, "caldav", got["store"].String())
			assert.Equal(t, "evt-1", got["event_id"].String())
			assert.NotContains(t, got, "calendar", "empty fields are skipped")
			assert.NotContains(t, got, "error")

			if tt.hashedKey {
				assert.NotContains(t, got, "user")
				assert.Equal(t, logging.AnonymizeUser("jane@example.com"), got[logging.KeyUserHash].String())
			} else {
				assert.Equal(t, tt.wantUser, got["user"].String())
			}
		})
	}
}

func TestToolInvocation_WithSpanContext_NoSpan(t *testing.T) {
	ti := NewToolInvocation("tool").WithSpanContext(context.Background())
	assert.Empty(t, ti.TraceID)
	assert.Empty(t, ti.SpanID)
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	audit := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true})
	audit.LogToolInvocation(NewToolInvocation("calendar_list_calendars").Complete(true, nil))
	audit.LogToolInvocation(NewToolInvocation("calendar_create_event").Complete(false, errors.New("boom")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "tool_executed", first["msg"])
	assert.Equal(t, "audit", first["log_type"])
	assert.Equal(t, "INFO", first["level"])

	assert.Equal(t, "tool_failed", second["msg"])
	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, "boom", second["error"])
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})
	audit.LogToolInvocation(NewToolInvocation("tool").Complete(true, nil))
	assert.Empty(t, buf.String())

	var nilLogger *AuditLogger
	assert.NotPanics(t, func() { nilLogger.LogToolInvocation(NewToolInvocation("tool")) })
}
