package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer of every calbridge span
const TracerName = "github.com/teemow/calbridge"

// Span attribute keys
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrReadOnly  = "mcp.read_only"
	SpanAttrStore     = "calendar.store"
	SpanAttrOperation = "calendar.operation"
	SpanAttrCalendar  = "calendar.name"
	SpanAttrEventID   = "calendar.event_id"
	SpanAttrSpan      = "calendar.span"
)

// SpanAttributeBuilder collects span attributes, skipping empty values
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 6)}
}

func (b *SpanAttributeBuilder) add(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	return b.add(SpanAttrTool, tool)
}

func (b *SpanAttributeBuilder) WithStore(store string) *SpanAttributeBuilder {
	return b.add(SpanAttrStore, store)
}

func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	return b.add(SpanAttrOperation, operation)
}

func (b *SpanAttributeBuilder) WithCalendar(name string) *SpanAttributeBuilder {
	return b.add(SpanAttrCalendar, name)
}

func (b *SpanAttributeBuilder) WithEventID(id string) *SpanAttributeBuilder {
	return b.add(SpanAttrEventID, id)
}

func (b *SpanAttributeBuilder) WithSpan(span string) *SpanAttributeBuilder {
	return b.add(SpanAttrSpan, span)
}

func (b *SpanAttributeBuilder) WithReadOnly(readOnly bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrReadOnly, readOnly))
	return b
}

func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartToolSpan starts a server span named tool.<name>. The caller ends it.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+toolName,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartStoreSpan starts a client span named store.<store>.<operation> around
// a native store call
func StartStoreSpan(ctx context.Context, store, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrStore, store),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "store."+store+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan sets the span status from err and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// GetTraceID returns the trace ID of the span in ctx, or ""
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span ID of the span in ctx, or ""
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
