package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrStore     = "store"
	attrOperation = "operation"
	attrResult    = "result"
	attrTool      = "tool"
	attrCalendar  = "calendar"
	attrSpan      = "span"
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics records calbridge metrics. The zero value drops everything, which
// is what a disabled Provider hands out.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	storeOperationsTotal   metric.Int64Counter
	storeOperationDuration metric.Float64Histogram
	storeMutationsTotal    metric.Int64Counter

	authorizationTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.storeOperationsTotal, "calendar_store_operations_total", "Total number of native calendar store operations", "{operation}"},
		{&m.storeMutationsTotal, "calendar_store_mutations_total", "Saves and removes by span", "{mutation}"},
		{&m.authorizationTotal, "calendar_authorization_total", "Authorization handshakes by result", "{handshake}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	histograms := []struct {
		dst     *metric.Float64Histogram
		name    string
		desc    string
		buckets []float64
	}{
		{&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds",
			[]float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0}},
		{&m.storeOperationDuration, "calendar_store_operation_duration_seconds", "Native calendar store operation duration in seconds", durationBuckets},
		{&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds", durationBuckets},
	}
	for _, h := range histograms {
		histogram, err := meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(h.buckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
		*h.dst = histogram
	}

	return m, nil
}

// RecordHTTPRequest records one request served by the streamable HTTP transport
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStoreOperation records one call into the native store.
// store is the backend name (caldav, memory), operation one of the
// Operation* constants.
func (m *Metrics) RecordStoreOperation(ctx context.Context, store, operation, status string, duration time.Duration) {
	if m == nil || m.storeOperationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrStore, store),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.storeOperationsTotal.Add(ctx, 1, attrs)
	m.storeOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStoreMutation counts a save or remove with the span it was issued with
func (m *Metrics) RecordStoreMutation(ctx context.Context, store, operation, span string) {
	if m == nil || m.storeMutationsTotal == nil {
		return
	}
	m.storeMutationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStore, store),
		attribute.String(attrOperation, operation),
		attribute.String(attrSpan, span),
	))
}

// RecordAuthorization counts a handshake outcome: AuthGranted, AuthDenied
// or AuthTimeout
func (m *Metrics) RecordAuthorization(ctx context.Context, store, result string) {
	if m == nil || m.authorizationTotal == nil {
		return
	}
	m.authorizationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStore, store),
		attribute.String(attrResult, result),
	))
}

// RecordToolInvocation records an MCP tool call. The calendar label is only
// added with detailed labels enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, calendarName string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && calendarName != "" {
		attrs = append(attrs, attribute.String(attrCalendar, calendarName))
	}
	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
