package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/common"
)

const timeArgHint = "ISO 8601 in the server's timezone unless an offset is given, e.g. 2026-02-10T09:00 or 2026-02-10"

// RegisterReadTools registers the tools that never modify events
func RegisterReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listCalendarsTool := mcp.NewTool("calendar_list_calendars",
		mcp.WithDescription("List the names of all calendars"),
	)
	s.AddTool(listCalendarsTool, common.InstrumentedToolHandler(
		"calendar_list_calendars", access.OpListCalendars, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events overlapping a time range"),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start of the range ("+timeArgHint+")"),
		),
		mcp.WithString("end_date",
			mcp.Required(),
			mcp.Description("End of the range. A bare date includes the whole day."),
		),
		mcp.WithString("calendar_name",
			mcp.Description("Calendar name (default: all calendars)"),
		),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandler(
		"calendar_list_events", access.OpListEvents, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	searchEventsTool := mcp.NewTool("calendar_search_events",
		mcp.WithDescription("Search events by keyword in title, notes and location"),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Case-insensitive keyword"),
		),
		mcp.WithString("calendar_name",
			mcp.Description("Calendar name (default: all calendars)"),
		),
		mcp.WithNumber("days_back",
			mcp.Description("Days before now to search (default: 30)"),
		),
		mcp.WithNumber("days_forward",
			mcp.Description("Days after now to search (default: 90)"),
		),
	)
	s.AddTool(searchEventsTool, common.InstrumentedToolHandler(
		"calendar_search_events", access.OpSearchEvents, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchEvents(ctx, request, sc)
		}))

	getEventTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get the details of one event"),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("Event ID (from calendar_list_events or calendar_search_events)"),
		),
	)
	s.AddTool(getEventTool, common.InstrumentedToolHandler(
		"calendar_get_event", access.OpGetEvent, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	return nil
}

func handleListCalendars(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	names, err := access.ListCalendars(ctx, sc.Bridge())
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(access.CalendarsText(names)), nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	loc := sc.Location()

	startStr, err := requiredString(args, "start_date")
	if err != nil {
		return argumentError(err), nil
	}
	start, err := parseTimeArg(startStr, "start_date", loc, false)
	if err != nil {
		return argumentError(err), nil
	}

	endStr, err := requiredString(args, "end_date")
	if err != nil {
		return argumentError(err), nil
	}
	end, err := parseTimeArg(endStr, "end_date", loc, true)
	if err != nil {
		return argumentError(err), nil
	}

	events, err := access.ListEvents(ctx, sc.Bridge(), start, end, common.StringArg(args, "calendar_name"))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(access.ListEventsText(events, loc)), nil
}

func handleSearchEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	keyword, err := requiredString(args, "keyword")
	if err != nil {
		return argumentError(err), nil
	}

	opts := sc.SearchDefaults()
	opts.CalendarName = common.StringArg(args, "calendar_name")
	for _, f := range []struct {
		key string
		dst *calendar.Optional[int]
	}{
		{"days_back", &opts.DaysBack},
		{"days_forward", &opts.DaysForward},
	} {
		n, err := optionalInt(args, f.key)
		if err != nil {
			return argumentError(err), nil
		}
		if n.IsSet() {
			*f.dst = n
		}
	}

	events, err := access.SearchEvents(ctx, sc.Bridge(), keyword, opts)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(access.SearchEventsText(keyword, events, sc.Location())), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	eventID, err := requiredString(request.GetArguments(), "event_id")
	if err != nil {
		return argumentError(err), nil
	}

	ev, err := access.GetEvent(ctx, sc.Bridge(), eventID)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(access.DetailsText(ev, sc.Location())), nil
}
