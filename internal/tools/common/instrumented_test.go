package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/server"
)

type toolRecorder struct {
	reader *sdkmetric.ManualReader
	audit  *bytes.Buffer
	sc     *server.ServerContext
}

func newToolRecorder(t *testing.T) *toolRecorder {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), true)
	require.NoError(t, err)

	var buf bytes.Buffer
	audit := instrumentation.NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true})

	sc := server.NewServerContext(context.Background(), nil,
		server.WithStore("memory", "jane@example.com"),
		server.WithMetrics(metrics),
		server.WithAuditLogger(audit),
	)
	t.Cleanup(func() { _ = sc.Shutdown() })

	return &toolRecorder{reader: reader, audit: &buf, sc: sc}
}

// statuses returns tool invocation counts keyed by status/calendar
func (r *toolRecorder) statuses(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mcp_tool_invocations_total" {
				continue
			}
			for _, p := range m.Data.(metricdata.Sum[int64]).DataPoints {
				status, _ := p.Attributes.Value(attribute.Key("status"))
				cal, _ := p.Attributes.Value(attribute.Key("calendar"))
				out[status.AsString()+"/"+cal.AsString()] += p.Value
			}
		}
	}
	return out
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestInstrumentedToolHandler(t *testing.T) {
	tests := []struct {
		name       string
		handler    ToolHandler
		args       map[string]any
		wantStatus string
		wantAudit  []string
		wantErr    bool
	}{
		{
			name: "success",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("ok"), nil
			},
			args:       map[string]any{"calendar_name": "Work"},
			wantStatus: "success/Work",
			wantAudit:  []string{"tool_executed", "calendar=Work", "operation=events_matching"},
		},
		{
			name: "error result",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("Error: Event not found: abc"), nil
			},
			args:       map[string]any{"event_id": "abc"},
			wantStatus: "error/",
			wantAudit:  []string{"tool_failed", "event_id=abc", "Event not found"},
		},
		{
			name: "go error",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("transport closed")
			},
			wantStatus: "error/",
			wantAudit:  []string{"tool_failed", "transport closed"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newToolRecorder(t)
			called := false
			handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				called = true
				return tt.handler(ctx, req)
			}

			wrapped := InstrumentedToolHandler("calendar_list_events", instrumentation.OperationEventsMatching, rec.sc, handler)
			_, err := wrapped(context.Background(), callRequest(tt.args))

			assert.True(t, called)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, map[string]int64{tt.wantStatus: 1}, rec.statuses(t))

			audit := rec.audit.String()
			for _, want := range tt.wantAudit {
				assert.Contains(t, audit, want)
			}
			assert.NotContains(t, audit, "jane@example.com")
		})
	}
}

func TestInstrumentedToolHandler_NoInstrumentation(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	wrapped := InstrumentedToolHandler("calendar_list_calendars", instrumentation.OperationCalendars, sc,
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("- Home"), nil
		})

	result, err := wrapped(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "- Home", ResultText(result))
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"event_id": "abc", "ids": []any{"a"}, "n": 3.0}

	assert.Equal(t, "abc", StringArg(args, "event_id"))
	assert.Empty(t, StringArg(args, "ids"))
	assert.Empty(t, StringArg(args, "n"))
	assert.Empty(t, StringArg(nil, "event_id"))
}

func TestResultText(t *testing.T) {
	assert.Empty(t, ResultText(nil))
	assert.Empty(t, ResultText(&mcp.CallToolResult{}))
	assert.Equal(t, "hello", ResultText(mcp.NewToolResultText("hello")))
}
