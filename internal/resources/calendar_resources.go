package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/native"
	"github.com/teemow/calbridge/internal/server"
)

const (
	CalendarsURI = "calendars://list"
	TodayURI     = "calendars://today"
)

// RegisterCalendarResources exposes the calendar list and today's agenda
func RegisterCalendarResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	calendarsResource := mcp.NewResource(
		CalendarsURI,
		"Calendars",
		mcp.WithResourceDescription("Names of the calendars available to calbridge, one per line"),
		mcp.WithMIMEType("text/plain"),
	)
	s.AddResource(calendarsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCalendars(ctx, request, sc)
	})

	todayResource := mcp.NewResource(
		TodayURI,
		"Today's events",
		mcp.WithResourceDescription("Events overlapping the current day across all calendars, as JSON"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(todayResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleToday(ctx, request, sc, time.Now())
	})

	return nil
}

// handleCalendars answers with the error text instead of failing the read,
// so clients always get something to show
func handleCalendars(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	var text string
	names, err := access.ListCalendars(ctx, sc.Bridge())
	if err != nil {
		text = access.ErrorText(err)
	} else {
		text = access.CalendarsText(names)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

func handleToday(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext, now time.Time) ([]mcp.ResourceContents, error) {
	start := native.Midnight(now.In(sc.Location()))
	end := start.AddDate(0, 0, 1).Add(-time.Second)

	events, err := access.ListEvents(ctx, sc.Bridge(), start, end, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list today's events: %w", err)
	}
	if events == nil {
		events = []calendar.Event{}
	}

	jsonData, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
