package calendar

import (
	"context"
	"time"
)

// AuthorizationStatus is the host's answer to "may this process read and write
// calendar events".
type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusRestricted
	StatusDenied
	StatusAuthorized
	StatusFullAccess
)

// Granted reports whether the status allows full event access
func (s AuthorizationStatus) Granted() bool {
	return s == StatusAuthorized || s == StatusFullAccess
}

func (s AuthorizationStatus) String() string {
	switch s {
	case StatusNotDetermined:
		return "not_determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	case StatusFullAccess:
		return "full_access"
	default:
		return "unknown"
	}
}

// Span scopes a save or remove against a recurring series
type Span int

const (
	// SpanThisEvent affects only the event (or occurrence) passed in
	SpanThisEvent Span = iota
	// SpanFutureEvents affects the event and every later occurrence of its series
	SpanFutureEvents
)

func (s Span) String() string {
	if s == SpanFutureEvents {
		return "future_events"
	}
	return "this_event"
}

// Alarm fires RelativeOffset after the event start. Lead times are negative.
type Alarm struct {
	RelativeOffset time.Duration
}

// AlarmWithRelativeOffset builds an alarm relative to the event start
func AlarmWithRelativeOffset(offset time.Duration) Alarm {
	return Alarm{RelativeOffset: offset}
}

// AlarmBefore builds an alarm that fires the given number of minutes before start
func AlarmBefore(minutes int) Alarm {
	return AlarmWithRelativeOffset(-time.Duration(minutes) * time.Minute)
}

// NativeCalendar is an opaque handle to one calendar of the store
type NativeCalendar interface {
	Title() string
}

// NativeEvent is the store's mutable event record. Setters only change the
// in-memory object; nothing is persisted until NativeStore.SaveEvent.
type NativeEvent interface {
	Identifier() string

	Title() string
	SetTitle(title string)
	StartDate() time.Time
	SetStartDate(t time.Time)
	EndDate() time.Time
	SetEndDate(t time.Time)
	IsAllDay() bool
	SetAllDay(allDay bool)
	Location() string
	SetLocation(location string)
	Notes() string
	SetNotes(notes string)
	URL() string
	SetURL(url string)
	Calendar() NativeCalendar
	SetCalendar(cal NativeCalendar)

	Alarms() []Alarm
	AddAlarm(alarm Alarm)
	RemoveAlarm(alarm Alarm)

	RecurrenceRules() []RecurrenceRule
	AddRecurrenceRule(rule RecurrenceRule)
	RemoveRecurrenceRule(rule RecurrenceRule)
	HasRecurrenceRules() bool
}

// EventPredicate selects events overlapping [Start, End]. A nil Calendars
// slice means every calendar.
type EventPredicate struct {
	Start     time.Time
	End       time.Time
	Calendars []NativeCalendar
}

// NativeStore is the capability set calbridge needs from a host calendar
// subsystem. Implementations are not required to be safe for concurrent use;
// Client serializes access.
type NativeStore interface {
	// AuthorizationStatus returns the current access decision without prompting
	AuthorizationStatus() AuthorizationStatus
	// RequestAccess asks the host for access. The completion is delivered
	// through the store's dispatch queue, so callers must keep calling
	// RunDispatch until it fires.
	RequestAccess(completion func(granted bool, err error))
	// RunDispatch services the store's callback queue for at most d
	RunDispatch(d time.Duration)
	// AuthorizationGuidance tells the user how to grant access after a denial
	AuthorizationGuidance() string

	Calendars(ctx context.Context) ([]NativeCalendar, error)
	// DefaultCalendarForNewEvents returns nil when the host has no default
	DefaultCalendarForNewEvents(ctx context.Context) (NativeCalendar, error)
	EventsMatching(ctx context.Context, predicate EventPredicate) ([]NativeEvent, error)
	// EventWithIdentifier returns nil when no event carries the identifier
	EventWithIdentifier(ctx context.Context, id string) (NativeEvent, error)
	NewEvent() NativeEvent
	SaveEvent(ctx context.Context, event NativeEvent, span Span) error
	RemoveEvent(ctx context.Context, event NativeEvent, span Span) error
}
