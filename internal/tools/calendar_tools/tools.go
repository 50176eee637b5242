package calendar_tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/server"
)

// RegisterCalendarTools registers the calendar tools. Tools that modify
// events are only registered when readOnly is false.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterReadTools(s, sc); err != nil {
		return fmt.Errorf("failed to register read tools: %w", err)
	}
	if readOnly {
		return nil
	}
	if err := RegisterWriteTools(s, sc); err != nil {
		return fmt.Errorf("failed to register write tools: %w", err)
	}
	return nil
}

// errorResult reports a failure to the client as "Error: <message>"
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(access.ErrorText(err))
}

// argumentError reports a malformed argument as InvalidRequest
func argumentError(err error) *mcp.CallToolResult {
	if calendar.KindOf(err) == calendar.KindInvalidRequest {
		return errorResult(err)
	}
	return invalidArgument("%s", err.Error())
}

func invalidArgument(format string, a ...any) *mcp.CallToolResult {
	return errorResult(calendar.NewInvalidRequestError(fmt.Sprintf(format, a...)))
}
