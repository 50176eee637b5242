// Package memory implements calendar.NativeStore entirely in process memory.
//
// It behaves like a host calendar store where that matters to calbridge:
// events handed out are detached copies that only change the store on save,
// all-day events are snapped to midnight boundaries, recurring series are
// expanded into occurrences when queried, and the access request is answered
// through the dispatch queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/native"
	"github.com/teemow/calbridge/internal/native/dispatch"
	"github.com/teemow/calbridge/internal/native/recur"
)

// Calendar is a calendar handle of the memory store
type Calendar struct {
	id    string
	title string
}

func (c *Calendar) Title() string { return c.title }

type accessResponse struct {
	granted bool
	err     error
}

// Store is an in-memory calendar.NativeStore
type Store struct {
	mu sync.Mutex

	loc        *time.Location
	calendars  []*Calendar
	defaultCal *Calendar
	events     map[string]*Event
	order      []string

	status   calendar.AuthorizationStatus
	response *accessResponse
	queue    *dispatch.Queue

	saveErr   error
	removeErr error
}

// Option configures a Store
type Option func(*Store)

// WithCalendars replaces the default "Home" and "Work" calendars. The first
// title becomes the default calendar for new events.
func WithCalendars(titles ...string) Option {
	return func(s *Store) {
		s.calendars = nil
		for _, title := range titles {
			s.calendars = append(s.calendars, &Calendar{id: uuid.NewString(), title: title})
		}
		s.defaultCal = nil
		if len(s.calendars) > 0 {
			s.defaultCal = s.calendars[0]
		}
	}
}

// WithoutDefaultCalendar leaves the store without a default for new events
func WithoutDefaultCalendar() Option {
	return func(s *Store) {
		s.defaultCal = nil
	}
}

// WithDefaultCalendar picks the default calendar by title
func WithDefaultCalendar(title string) Option {
	return func(s *Store) {
		for _, c := range s.calendars {
			if c.title == title {
				s.defaultCal = c
				return
			}
		}
	}
}

// WithAuthorizationStatus sets the status reported before any request
func WithAuthorizationStatus(status calendar.AuthorizationStatus) Option {
	return func(s *Store) {
		s.status = status
	}
}

// WithAccessResponse sets how an access request is answered
func WithAccessResponse(granted bool, err error) Option {
	return func(s *Store) {
		s.response = &accessResponse{granted: granted, err: err}
	}
}

// WithoutAccessResponse makes access requests never complete
func WithoutAccessResponse() Option {
	return func(s *Store) {
		s.response = nil
	}
}

// WithLocation sets the timezone used to snap all-day events to midnight
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// New returns an authorized store with a "Home" and a "Work" calendar
func New(opts ...Option) *Store {
	s := &Store{
		loc:      time.Local,
		events:   make(map[string]*Event),
		status:   calendar.StatusFullAccess,
		response: &accessResponse{granted: true},
		queue:    dispatch.New(),
	}
	WithCalendars("Home", "Work")(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailSaves makes every following save fail with err; nil restores saving
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailRemoves makes every following remove fail with err; nil restores removing
func (s *Store) FailRemoves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

// AddCalendar appends a calendar, duplicates allowed
func (s *Store) AddCalendar(title string) *Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Calendar{id: uuid.NewString(), title: title}
	s.calendars = append(s.calendars, c)
	return c
}

func (s *Store) AuthorizationStatus() calendar.AuthorizationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) RequestAccess(completion func(granted bool, err error)) {
	s.mu.Lock()
	resp := s.response
	s.mu.Unlock()
	if resp == nil {
		return
	}

	go s.queue.Post(func() {
		s.mu.Lock()
		if resp.granted {
			s.status = calendar.StatusFullAccess
		} else {
			s.status = calendar.StatusDenied
		}
		s.mu.Unlock()
		completion(resp.granted, resp.err)
	})
}

func (s *Store) RunDispatch(d time.Duration) {
	s.queue.Run(d)
}

func (s *Store) AuthorizationGuidance() string {
	return "The in-memory store keeps no access decision between runs; restart calbridge to ask again"
}

func (s *Store) Calendars(ctx context.Context) ([]calendar.NativeCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]calendar.NativeCalendar, 0, len(s.calendars))
	for _, c := range s.calendars {
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) DefaultCalendarForNewEvents(ctx context.Context) (calendar.NativeCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaultCal == nil {
		return nil, nil
	}
	return s.defaultCal, nil
}

func (s *Store) EventsMatching(ctx context.Context, p calendar.EventPredicate) ([]calendar.NativeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []calendar.NativeEvent
	for _, id := range s.order {
		ev := s.events[id]
		if !inCalendars(ev.cal, p.Calendars) {
			continue
		}

		if len(ev.rules) == 0 {
			if native.Overlaps(ev.start, ev.end, p.Start, p.End) {
				out = append(out, ev.clone())
			}
			continue
		}

		occurrences, err := recur.Between(ev.rules[0], ev.start, ev.end, p.Start, p.End)
		if err != nil {
			return nil, fmt.Errorf("failed to expand series %s: %w", ev.id, err)
		}
		for _, occ := range occurrences {
			if !native.Overlaps(occ.Start, occ.End, p.Start, p.End) {
				continue
			}
			c := ev.clone()
			c.start, c.end = occ.Start, occ.End
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) EventWithIdentifier(ctx context.Context, id string) (calendar.NativeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return ev.clone(), nil
}

func (s *Store) NewEvent() calendar.NativeEvent {
	return &Event{}
}

func (s *Store) SaveEvent(ctx context.Context, nev calendar.NativeEvent, span calendar.Span) error {
	ev, ok := nev.(*Event)
	if !ok {
		return errors.New("event does not belong to the memory store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	if err := s.validate(ev); err != nil {
		return err
	}
	if ev.allDay {
		ev.start, ev.end = native.SnapToDays(ev.start, ev.end, s.loc)
	}

	if ev.id == "" {
		ev.id = uuid.NewString()
		s.order = append(s.order, ev.id)
	} else if _, exists := s.events[ev.id]; !exists {
		return fmt.Errorf("event %s was removed from the store", ev.id)
	}
	s.events[ev.id] = ev.clone()
	return nil
}

func (s *Store) RemoveEvent(ctx context.Context, nev calendar.NativeEvent, span calendar.Span) error {
	ev, ok := nev.(*Event)
	if !ok {
		return errors.New("event does not belong to the memory store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeErr != nil {
		return s.removeErr
	}
	if _, exists := s.events[ev.id]; !exists {
		return fmt.Errorf("event %s is not in the store", ev.id)
	}
	delete(s.events, ev.id)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == ev.id })
	return nil
}

func (s *Store) validate(ev *Event) error {
	if ev.cal == nil {
		return errors.New("no calendar has been set")
	}
	if !slices.Contains(s.calendars, ev.cal) {
		return errors.New("the calendar does not belong to this store")
	}
	if ev.end.Before(ev.start) {
		return errors.New("the start date must be before the end date")
	}
	return nil
}

func inCalendars(c *Calendar, filter []calendar.NativeCalendar) bool {
	if filter == nil {
		return true
	}
	for _, f := range filter {
		if fc, ok := f.(*Calendar); ok && fc == c {
			return true
		}
	}
	return false
}
