package calendar_tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/batch"
	"github.com/teemow/calbridge/internal/tools/common"
)

var recurrenceProperties = map[string]any{
	"frequency": map[string]any{
		"type": "string",
		"enum": []string{"daily", "weekly", "monthly", "yearly"},
	},
	"interval": map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": "Repeat every N periods (default: 1)",
	},
	"end_date": map[string]any{
		"type":        "string",
		"description": "Last day of the series (default: never ends)",
	},
}

// eventFieldOptions are the arguments shared by create and update
func eventFieldOptions(required bool) []mcp.ToolOption {
	req := func(opts ...mcp.PropertyOption) []mcp.PropertyOption {
		if required {
			return append(opts, mcp.Required())
		}
		return opts
	}
	return []mcp.ToolOption{
		mcp.WithString("title", req(mcp.Description("Event title"))...),
		mcp.WithString("start_time", req(mcp.Description("Start ("+timeArgHint+")"))...),
		mcp.WithString("end_time", req(mcp.Description("End, same format as start_time. A bare date ends with that day."))...),
		mcp.WithString("calendar_name",
			mcp.Description("Calendar name (default: the default calendar for new events)"),
		),
		mcp.WithString("location", mcp.Description("Location")),
		mcp.WithString("notes", mcp.Description("Notes")),
		mcp.WithString("url", mcp.Description("URL attached to the event")),
		mcp.WithArray("alarms_minutes_offsets",
			mcp.Description("Alarms as minutes before the start, e.g. [15, 60]"),
			mcp.Items(map[string]any{"type": "integer", "minimum": 0}),
		),
		mcp.WithBoolean("all_day", mcp.Description("All-day event; times are widened to whole days")),
		mcp.WithObject("recurrence_rule",
			mcp.Description("Repeat rule: {frequency, interval, end_date}"),
			mcp.Properties(recurrenceProperties),
		),
	}
}

// RegisterWriteTools registers the tools that create, change or delete events
func RegisterWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Create a calendar event, optionally with alarms and a recurrence rule"),
	}, eventFieldOptions(true)...)
	s.AddTool(mcp.NewTool("calendar_create_event", createOpts...), common.InstrumentedToolHandler(
		"calendar_create_event", access.OpCreateEvent, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	updateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Update the given fields of an event. Recurring events are changed from this occurrence on. " +
			"Pass null for alarms_minutes_offsets or recurrence_rule to remove them, and null for location, notes or url to clear them."),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("Event ID (from calendar_list_events or calendar_search_events)"),
		),
	}, eventFieldOptions(false)...)
	s.AddTool(mcp.NewTool("calendar_update_event", updateOpts...), common.InstrumentedToolHandler(
		"calendar_update_event", access.OpUpdateEvent, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	deleteTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete events. Recurring events are deleted from this occurrence on."),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("Event ID (string) or array of event IDs to delete"),
		),
	)
	s.AddTool(deleteTool, common.InstrumentedToolHandler(
		"calendar_delete_event", access.OpDeleteEvent, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	return nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	loc := sc.Location()

	req := calendar.CreateEventRequest{
		CalendarName: common.StringArg(args, "calendar_name"),
		Location:     common.StringArg(args, "location"),
		Notes:        common.StringArg(args, "notes"),
		URL:          common.StringArg(args, "url"),
	}

	var err error
	if req.Title, err = requiredString(args, "title"); err != nil {
		return argumentError(err), nil
	}
	for _, f := range []struct {
		key      string
		dst      *time.Time
		endOfDay bool
	}{
		{"start_time", &req.Start, false},
		{"end_time", &req.End, true},
	} {
		value, err := requiredString(args, f.key)
		if err != nil {
			return argumentError(err), nil
		}
		if *f.dst, err = parseTimeArg(value, f.key, loc, f.endOfDay); err != nil {
			return argumentError(err), nil
		}
	}

	allDay, err := optionalBool(args, "all_day")
	if err != nil {
		return argumentError(err), nil
	}
	req.AllDay = allDay.OrElse(false)

	if v := args["alarms_minutes_offsets"]; v != nil {
		if req.AlarmMinutes, err = alarmMinutes(v, "alarms_minutes_offsets"); err != nil {
			return argumentError(err), nil
		}
	}
	if v := args["recurrence_rule"]; v != nil {
		if req.Recurrence, err = recurrenceRule(v, "recurrence_rule", loc); err != nil {
			return argumentError(err), nil
		}
	}

	ev, err := access.CreateEvent(ctx, sc.Bridge(), req)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(access.CreatedText(ev)), nil
}

// updateRequest maps present arguments onto a partial update. An explicit
// null clears alarms, recurrence and the free-text fields.
func updateRequest(args map[string]any, loc *time.Location) (calendar.UpdateEventRequest, error) {
	var req calendar.UpdateEventRequest
	var err error

	if req.Title, err = optionalString(args, "title", false); err != nil {
		return req, err
	}
	if req.CalendarName, err = optionalString(args, "calendar_name", false); err != nil {
		return req, err
	}
	if req.Location, err = optionalString(args, "location", true); err != nil {
		return req, err
	}
	if req.Notes, err = optionalString(args, "notes", true); err != nil {
		return req, err
	}
	if req.URL, err = optionalString(args, "url", true); err != nil {
		return req, err
	}
	if req.Start, err = optionalTime(args, "start_time", loc, false); err != nil {
		return req, err
	}
	if req.End, err = optionalTime(args, "end_time", loc, true); err != nil {
		return req, err
	}
	if req.AllDay, err = optionalBool(args, "all_day"); err != nil {
		return req, err
	}

	if v, present := args["alarms_minutes_offsets"]; present {
		var minutes []int
		if v != nil {
			if minutes, err = alarmMinutes(v, "alarms_minutes_offsets"); err != nil {
				return req, err
			}
		}
		req.AlarmMinutes = calendar.Some(minutes)
	}
	if v, present := args["recurrence_rule"]; present {
		var rule *calendar.RecurrenceRule
		if v != nil {
			if rule, err = recurrenceRule(v, "recurrence_rule", loc); err != nil {
				return req, err
			}
		}
		req.Recurrence = calendar.Some(rule)
	}
	return req, nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, err := requiredString(args, "event_id")
	if err != nil {
		return argumentError(err), nil
	}
	req, err := updateRequest(args, sc.Location())
	if err != nil {
		return argumentError(err), nil
	}

	ev, err := access.UpdateEvent(ctx, sc.Bridge(), eventID, req)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(access.UpdatedText(ev)), nil
}

// handleDeleteEvent answers a single ID with a line and a list of IDs with a
// batch summary
func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ids, err := batch.ParseStringOrArray(args["event_id"], "event_id")
	if err != nil {
		return argumentError(err), nil
	}

	if _, single := args["event_id"].(string); single {
		title, err := access.DeleteEvent(ctx, sc.Bridge(), ids[0])
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(access.DeletedText(title)), nil
	}

	results := batch.Process(ctx, ids,
		func(ctx context.Context, id string) (string, error) {
			title, err := access.DeleteEvent(ctx, sc.Bridge(), id)
			if err != nil {
				return "", err
			}
			return access.DeletedText(title), nil
		},
		func(err error) string { return access.KindOf(err).String() })

	summary := batch.Summarize(results)
	if summary.Successful == 0 {
		return mcp.NewToolResultError(batch.FormatResults(results)), nil
	}
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}
