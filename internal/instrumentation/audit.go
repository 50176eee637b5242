package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/calbridge/internal/logging"
)

// ToolInvocation is one audited MCP tool call
type ToolInvocation struct {
	Tool      string
	Operation string
	Store     string

	// User is the store account the call ran against
	User string

	Calendar string
	EventID  string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a tool call
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

func (ti *ToolInvocation) WithStore(store, user string) *ToolInvocation {
	ti.Store = store
	ti.User = user
	return ti
}

func (ti *ToolInvocation) WithOperation(operation string) *ToolInvocation {
	ti.Operation = operation
	return ti
}

// WithTarget records the calendar and event the call addressed
func (ti *ToolInvocation) WithTarget(calendarName, eventID string) *ToolInvocation {
	ti.Calendar = calendarName
	ti.EventID = eventID
	return ti
}

func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete stops the clock
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the record's attributes. The user is hashed unless
// includePII is set.
func (ti *ToolInvocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	optional := []struct{ key, value string }{
		{"operation", ti.Operation},
		{"store", ti.Store},
		{"calendar", ti.Calendar},
		{"event_id", ti.EventID},
		{"trace_id", ti.TraceID},
		{"span_id", ti.SpanID},
		{"error", ti.Error},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, slog.String(o.key, o.value))
		}
	}

	if ti.User != "" {
		if includePII {
			attrs = append(attrs, slog.String("user", ti.User))
		} else {
			attrs = append(attrs, logging.UserHash(ti.User))
		}
	}
	return attrs
}

// AuditLogger writes one record per tool call
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger logs through logger, or slog.Default when nil
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("log_type", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ti.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
