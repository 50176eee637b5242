package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/server"
)

// ToolHandler is the mcp-go tool handler signature
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// errToolResult marks an audit record whose handler answered with an error result
var errToolResult = errors.New("tool returned an error result")

// InstrumentedToolHandler wraps handler with a tool span, the
// mcp_tool_invocations_total metric and an audit record.
//
//	s.AddTool(tool, common.InstrumentedToolHandler("calendar_list_events", instrumentation.OperationEventsMatching, sc, handler))
func InstrumentedToolHandler(toolName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		calendarName := StringArg(args, "calendar_name")
		eventID := StringArg(args, "event_id")

		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.NewSpanAttributeBuilder().
				WithStore(sc.StoreName()).
				WithOperation(operation).
				WithCalendar(calendarName).
				WithEventID(eventID).
				Build()...)

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithStore(sc.StoreName(), sc.Account()).
			WithOperation(operation).
			WithTarget(calendarName, eventID)

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errToolResult
			if text := ResultText(result); text != "" {
				failure = errors.New(text)
			}
		}
		invocation.Complete(failure == nil, failure)
		instrumentation.EndSpan(span, failure)

		sc.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(), calendarName, time.Since(start))
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}

// StringArg returns args[key] when it is a string, else ""
func StringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// ResultText returns the text of the first text content of result
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			return tc.Text
		case *mcp.TextContent:
			return tc.Text
		}
	}
	return ""
}
