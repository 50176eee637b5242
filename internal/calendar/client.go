package calendar

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teemow/calbridge/internal/logging"
)

// Client adapts one NativeStore connection to the domain model. It is created
// once per process after a successful authorization handshake; every method
// takes the same lock, so a Client can be shared by concurrent callers.
type Client struct {
	mu     sync.Mutex
	store  NativeStore
	logger *slog.Logger
	now    func() time.Time
}

type clientOptions struct {
	logger    *slog.Logger
	now       func() time.Time
	authorize AuthorizeOptions
}

// Option configures NewClient
type Option func(*clientOptions)

// WithLogger sets the logger used by the client and the handshake
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithClock replaces time.Now, used for the search window
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}

// WithPollInterval sets the handshake's dispatch time slice
func WithPollInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		o.authorize.PollInterval = d
	}
}

// WithAuthorizationTimeout bounds the handshake
func WithAuthorizationTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.authorize.Timeout = d
	}
}

// NewClient runs the authorization handshake against store and returns a
// Client owning it. No Client is returned when access is denied or the
// handshake times out.
func NewClient(store NativeStore, opts ...Option) (*Client, error) {
	o := clientOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.authorize.Logger = o.logger

	if err := Authorize(store, o.authorize); err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		logger: o.logger,
		now:    o.now,
	}, nil
}

// ResolveCalendar maps a calendar title to a handle. An empty name resolves
// to the host's default calendar for new events.
func (c *Client) ResolveCalendar(ctx context.Context, name string) (NativeCalendar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveCalendar(ctx, name)
}

func (c *Client) resolveCalendar(ctx context.Context, name string) (NativeCalendar, error) {
	if name == "" {
		cal, err := c.store.DefaultCalendarForNewEvents(ctx)
		if err != nil {
			return nil, NewStoreFailureError("failed to get default calendar", err)
		}
		if cal == nil {
			return nil, NewNoSuchCalendarError("")
		}
		return cal, nil
	}

	calendars, err := c.store.Calendars(ctx)
	if err != nil {
		return nil, NewStoreFailureError("failed to enumerate calendars", err)
	}

	var match NativeCalendar
	matches := 0
	for _, cal := range calendars {
		if cal.Title() == name {
			if match == nil {
				match = cal
			}
			matches++
		}
	}
	if match == nil {
		return nil, NewNoSuchCalendarError(name)
	}
	if matches > 1 {
		c.logger.Warn("calendar title is ambiguous, using the first match",
			logging.Calendar(name), slog.Int("matches", matches))
	}
	return match, nil
}

// FindByID returns the event with the given identifier
func (c *Client) FindByID(ctx context.Context, id string) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, err := c.findByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	return toEvent(ev), nil
}

func (c *Client) findByID(ctx context.Context, id string) (NativeEvent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewNoSuchEventError(id)
	}
	ev, err := c.store.EventWithIdentifier(ctx, id)
	if err != nil {
		return nil, NewStoreFailureError("failed to look up event", err)
	}
	if ev == nil {
		return nil, NewNoSuchEventError(id)
	}
	return ev, nil
}

// ListEvents returns events overlapping [start, end], sorted by start. An
// empty calendarName means all calendars. A window with end before start
// yields no events.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time, calendarName string) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listEvents(ctx, start, end, calendarName)
}

func (c *Client) listEvents(ctx context.Context, start, end time.Time, calendarName string) ([]Event, error) {
	events := []Event{}
	if end.Before(start) {
		return events, nil
	}

	predicate := EventPredicate{Start: start.UTC(), End: end.UTC()}
	if calendarName != "" {
		cal, err := c.resolveCalendar(ctx, calendarName)
		if err != nil {
			return nil, err
		}
		predicate.Calendars = []NativeCalendar{cal}
	}

	matched, err := c.store.EventsMatching(ctx, predicate)
	if err != nil {
		return nil, NewStoreFailureError("failed to query events", err)
	}

	for _, ev := range matched {
		e := toEvent(ev)
		if e.End.Before(start) || e.Start.After(end) {
			continue
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

// SearchEvents lists events in the window around now and keeps those whose
// title, notes or location contains keyword, ignoring case.
func (c *Client) SearchEvents(ctx context.Context, keyword, calendarName string, window SearchWindow) ([]Event, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start, end := window.bounds(c.now())
	events, err := c.listEvents(ctx, start, end, calendarName)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	matches := []Event{}
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Title), needle) ||
			strings.Contains(strings.ToLower(e.Notes), needle) ||
			strings.Contains(strings.ToLower(e.Location), needle) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// CreateEvent creates and saves a new event
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) (Event, error) {
	if err := req.Validate(); err != nil {
		return Event{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.resolveCalendar(ctx, req.CalendarName)
	if err != nil {
		return Event{}, err
	}

	ev := c.store.NewEvent()
	ev.SetTitle(req.Title)
	ev.SetStartDate(req.Start.UTC())
	ev.SetEndDate(req.End.UTC())
	ev.SetAllDay(req.AllDay)
	if req.Location != "" {
		ev.SetLocation(req.Location)
	}
	if req.Notes != "" {
		ev.SetNotes(req.Notes)
	}
	if req.URL != "" {
		ev.SetURL(req.URL)
	}
	for _, minutes := range req.AlarmMinutes {
		ev.AddAlarm(AlarmBefore(minutes))
	}
	if req.Recurrence != nil {
		ev.AddRecurrenceRule(normalizeRule(*req.Recurrence))
	}
	ev.SetCalendar(cal)

	// a fresh event has no earlier occurrences to affect
	if err := c.store.SaveEvent(context.WithoutCancel(ctx), ev, SpanThisEvent); err != nil {
		c.logger.Error("failed to save new event", logging.Calendar(cal.Title()), logging.Err(err))
		return Event{}, NewSaveFailedError("", err)
	}

	created := toEvent(ev)
	c.logger.Info("event created", logging.EventID(created.ID), logging.Calendar(created.CalendarName))
	return created, nil
}

// UpdateEvent applies the fields set in req to the event with the given
// identifier. Recurring events are saved with SpanFutureEvents.
func (c *Client) UpdateEvent(ctx context.Context, id string, req UpdateEventRequest) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, err := c.findByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if err := req.validateAgainst(ev); err != nil {
		return Event{}, err
	}

	var cal NativeCalendar
	if name, ok := req.CalendarName.Get(); ok {
		if cal, err = c.resolveCalendar(ctx, name); err != nil {
			return Event{}, err
		}
	}

	if v, ok := req.Title.Get(); ok {
		ev.SetTitle(v)
	}
	if v, ok := req.Start.Get(); ok {
		ev.SetStartDate(v.UTC())
	}
	if v, ok := req.End.Get(); ok {
		ev.SetEndDate(v.UTC())
	}
	if v, ok := req.AllDay.Get(); ok {
		ev.SetAllDay(v)
	}
	if v, ok := req.Location.Get(); ok {
		ev.SetLocation(v)
	}
	if v, ok := req.Notes.Get(); ok {
		ev.SetNotes(v)
	}
	if v, ok := req.URL.Get(); ok {
		ev.SetURL(v)
	}
	if cal != nil {
		ev.SetCalendar(cal)
	}
	if minutes, ok := req.AlarmMinutes.Get(); ok {
		for _, alarm := range ev.Alarms() {
			ev.RemoveAlarm(alarm)
		}
		for _, m := range minutes {
			ev.AddAlarm(AlarmBefore(m))
		}
	}
	if rule, ok := req.Recurrence.Get(); ok {
		for _, existing := range ev.RecurrenceRules() {
			ev.RemoveRecurrenceRule(existing)
		}
		if rule != nil {
			ev.AddRecurrenceRule(normalizeRule(*rule))
		}
	}

	span := spanFor(ev)
	if err := c.store.SaveEvent(context.WithoutCancel(ctx), ev, span); err != nil {
		c.logger.Error("failed to save event", logging.EventID(id), slog.String("span", span.String()), logging.Err(err))
		return Event{}, NewSaveFailedError(id, err)
	}

	updated := toEvent(ev)
	c.logger.Info("event updated", logging.EventID(updated.ID), slog.String("span", span.String()))
	return updated, nil
}

// DeleteEvent removes the event with the given identifier and returns its
// title. Recurring events are removed with SpanFutureEvents.
func (c *Client) DeleteEvent(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, err := c.findByID(ctx, id)
	if err != nil {
		return "", err
	}
	title := ev.Title()

	span := spanFor(ev)
	if err := c.store.RemoveEvent(context.WithoutCancel(ctx), ev, span); err != nil {
		c.logger.Error("failed to remove event", logging.EventID(id), slog.String("span", span.String()), logging.Err(err))
		return "", NewDeleteFailedError(id, err)
	}

	c.logger.Info("event deleted", logging.EventID(id), slog.String("span", span.String()))
	return title, nil
}

// ListCalendars returns every calendar title, sorted. Duplicate titles are
// kept.
func (c *Client) ListCalendars(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	calendars, err := c.store.Calendars(ctx)
	if err != nil {
		return nil, NewStoreFailureError("failed to enumerate calendars", err)
	}

	titles := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		titles = append(titles, cal.Title())
	}
	sort.Strings(titles)
	return titles, nil
}

func spanFor(ev NativeEvent) Span {
	if ev.HasRecurrenceRules() {
		return SpanFutureEvents
	}
	return SpanThisEvent
}

func normalizeRule(r RecurrenceRule) RecurrenceRule {
	r.Interval = r.EffectiveInterval()
	if r.HasEnd() {
		r.End = r.End.UTC()
	}
	return r
}

func toEvent(ev NativeEvent) Event {
	e := Event{
		ID:          ev.Identifier(),
		Title:       ev.Title(),
		Start:       ev.StartDate().UTC(),
		End:         ev.EndDate().UTC(),
		Location:    ev.Location(),
		Notes:       ev.Notes(),
		URL:         ev.URL(),
		AllDay:      ev.IsAllDay(),
		IsRecurring: ev.HasRecurrenceRules(),
	}
	if cal := ev.Calendar(); cal != nil {
		e.CalendarName = cal.Title()
	}
	return e
}
