// Package access is the thin layer the CLI and the MCP tools call. Every
// function resolves caller defaults, calls the calendar bridge once and turns
// its errors into a Failure that keeps the original error kind. Nothing is
// retried.
package access

import (
	"context"
	"errors"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
)

// Bridge is the set of calendar operations callers may use. *calendar.Client
// implements it.
type Bridge interface {
	ListCalendars(ctx context.Context) ([]string, error)
	ListEvents(ctx context.Context, start, end time.Time, calendarName string) ([]calendar.Event, error)
	SearchEvents(ctx context.Context, keyword, calendarName string, window calendar.SearchWindow) ([]calendar.Event, error)
	FindByID(ctx context.Context, id string) (calendar.Event, error)
	CreateEvent(ctx context.Context, req calendar.CreateEventRequest) (calendar.Event, error)
	UpdateEvent(ctx context.Context, id string, req calendar.UpdateEventRequest) (calendar.Event, error)
	DeleteEvent(ctx context.Context, id string) (string, error)
}

var _ Bridge = (*calendar.Client)(nil)

// Operation names, also used as metric and audit labels
const (
	OpListCalendars = "list_calendars"
	OpListEvents    = "list_events"
	OpSearchEvents  = "search_events"
	OpGetEvent      = "get_event"
	OpCreateEvent   = "create_event"
	OpUpdateEvent   = "update_event"
	OpDeleteEvent   = "delete_event"
)

// Failure is a bridge error as reported to callers
type Failure struct {
	Op   string
	Kind calendar.ErrorKind
	Err  error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Op: op, Kind: calendar.KindOf(err), Err: err}
}

// KindOf returns the error kind of a Failure or a bridge error
func KindOf(err error) calendar.ErrorKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return calendar.KindOf(err)
}

// SearchOptions narrows a keyword search. Unset day counts fall back to the
// default window of 30 days back and 90 days forward.
type SearchOptions struct {
	CalendarName string
	DaysBack     calendar.Optional[int]
	DaysForward  calendar.Optional[int]
}

func (o SearchOptions) window() calendar.SearchWindow {
	w := calendar.DefaultSearchWindow()
	w.DaysBack = o.DaysBack.OrElse(w.DaysBack)
	w.DaysForward = o.DaysForward.OrElse(w.DaysForward)
	return w
}

func ListCalendars(ctx context.Context, b Bridge) ([]string, error) {
	names, err := b.ListCalendars(ctx)
	if err != nil {
		return nil, fail(OpListCalendars, err)
	}
	return names, nil
}

// ListEvents returns the events overlapping [start, end]. An empty calendar
// name means every calendar.
func ListEvents(ctx context.Context, b Bridge, start, end time.Time, calendarName string) ([]calendar.Event, error) {
	events, err := b.ListEvents(ctx, start, end, calendarName)
	if err != nil {
		return nil, fail(OpListEvents, err)
	}
	return events, nil
}

func SearchEvents(ctx context.Context, b Bridge, keyword string, opts SearchOptions) ([]calendar.Event, error) {
	events, err := b.SearchEvents(ctx, keyword, opts.CalendarName, opts.window())
	if err != nil {
		return nil, fail(OpSearchEvents, err)
	}
	return events, nil
}

func GetEvent(ctx context.Context, b Bridge, id string) (calendar.Event, error) {
	ev, err := b.FindByID(ctx, id)
	if err != nil {
		return calendar.Event{}, fail(OpGetEvent, err)
	}
	return ev, nil
}

func CreateEvent(ctx context.Context, b Bridge, req calendar.CreateEventRequest) (calendar.Event, error) {
	ev, err := b.CreateEvent(ctx, req)
	if err != nil {
		return calendar.Event{}, fail(OpCreateEvent, err)
	}
	return ev, nil
}

// UpdateEvent applies the fields present in req. A request without any field
// is rejected instead of rewriting the event unchanged.
func UpdateEvent(ctx context.Context, b Bridge, id string, req calendar.UpdateEventRequest) (calendar.Event, error) {
	if req.IsEmpty() {
		return calendar.Event{}, fail(OpUpdateEvent, calendar.NewInvalidRequestError("no fields to update"))
	}
	ev, err := b.UpdateEvent(ctx, id, req)
	if err != nil {
		return calendar.Event{}, fail(OpUpdateEvent, err)
	}
	return ev, nil
}

// DeleteEvent removes the event and returns its title
func DeleteEvent(ctx context.Context, b Bridge, id string) (string, error) {
	title, err := b.DeleteEvent(ctx, id)
	if err != nil {
		return "", fail(OpDeleteEvent, err)
	}
	return title, nil
}
