package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Event is a read-only snapshot of a native event. It is rebuilt from the
// store on every read and never cached.
type Event struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	CalendarName string    `json:"calendar,omitempty"`
	Location     string    `json:"location,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	URL          string    `json:"url,omitempty"`
	AllDay       bool      `json:"all_day"`
	IsRecurring  bool      `json:"is_recurring"`
}

// Frequency is how often a recurring event repeats
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ParseFrequency accepts the frequency names case-insensitively
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return f, nil
	default:
		return "", NewInvalidRequestError(fmt.Sprintf("invalid frequency %q (expected daily, weekly, monthly or yearly)", s))
	}
}

func (f Frequency) unit() string {
	switch f {
	case FrequencyDaily:
		return "day"
	case FrequencyWeekly:
		return "week"
	case FrequencyMonthly:
		return "month"
	default:
		return "year"
	}
}

// RecurrenceRule describes a simple repeating series. An Interval of zero
// means 1; a zero End means the series never ends.
type RecurrenceRule struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval,omitempty"`
	End       time.Time `json:"end,omitzero"`
}

// EffectiveInterval returns the interval with the default applied
func (r RecurrenceRule) EffectiveInterval() int {
	if r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

// HasEnd reports whether the series stops at End
func (r RecurrenceRule) HasEnd() bool {
	return !r.End.IsZero()
}

// Equal compares two rules after applying defaults
func (r RecurrenceRule) Equal(other RecurrenceRule) bool {
	return r.Frequency == other.Frequency &&
		r.EffectiveInterval() == other.EffectiveInterval() &&
		r.End.Equal(other.End)
}

// Validate checks the rule against the start of the event that owns it. A
// zero Interval is the unset default and passes; callers that read an
// explicit interval from input reject values below 1 themselves.
func (r RecurrenceRule) Validate(eventStart time.Time) error {
	if _, err := ParseFrequency(string(r.Frequency)); err != nil {
		return err
	}
	if r.Interval < 0 {
		return NewInvalidRequestError(fmt.Sprintf("recurrence interval must be positive, got %d", r.Interval))
	}
	if r.HasEnd() && r.End.Before(eventStart) {
		return NewInvalidRequestError("recurrence end must not be before the event start")
	}
	return nil
}

func (r RecurrenceRule) String() string {
	var b strings.Builder
	if n := r.EffectiveInterval(); n == 1 {
		fmt.Fprintf(&b, "every %s", r.Frequency.unit())
	} else {
		fmt.Fprintf(&b, "every %d %ss", n, r.Frequency.unit())
	}
	if r.HasEnd() {
		fmt.Fprintf(&b, " until %s", r.End.Format(dateLayout))
	}
	return b.String()
}

// CreateEventRequest carries everything needed to create an event. An empty
// CalendarName selects the host's default calendar for new events.
type CreateEventRequest struct {
	Title        string
	Start        time.Time
	End          time.Time
	CalendarName string
	Location     string
	Notes        string
	URL          string
	AlarmMinutes []int
	AllDay       bool
	Recurrence   *RecurrenceRule
}

// Validate checks the required fields and their relations
func (r CreateEventRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return NewInvalidRequestError("title is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return NewInvalidRequestError("start and end are required")
	}
	if r.End.Before(r.Start) {
		return NewInvalidRequestError("end must not be before start")
	}
	if err := validateAlarms(r.AlarmMinutes); err != nil {
		return err
	}
	if r.Recurrence != nil {
		return r.Recurrence.Validate(r.Start)
	}
	return nil
}

// UpdateEventRequest is a partial update. Unset fields are left untouched.
// Setting AlarmMinutes or Recurrence replaces the existing alarms or rules;
// a set-but-empty value clears them.
type UpdateEventRequest struct {
	Title        Optional[string]
	Start        Optional[time.Time]
	End          Optional[time.Time]
	CalendarName Optional[string]
	Location     Optional[string]
	Notes        Optional[string]
	URL          Optional[string]
	AlarmMinutes Optional[[]int]
	AllDay       Optional[bool]
	Recurrence   Optional[*RecurrenceRule]
}

// IsEmpty reports whether no field is set
func (r UpdateEventRequest) IsEmpty() bool {
	return !r.Title.IsSet() && !r.Start.IsSet() && !r.End.IsSet() &&
		!r.CalendarName.IsSet() && !r.Location.IsSet() && !r.Notes.IsSet() &&
		!r.URL.IsSet() && !r.AlarmMinutes.IsSet() && !r.AllDay.IsSet() &&
		!r.Recurrence.IsSet()
}

// validateAgainst checks the request as it would apply on top of ev
func (r UpdateEventRequest) validateAgainst(ev NativeEvent) error {
	if title, ok := r.Title.Get(); ok && strings.TrimSpace(title) == "" {
		return NewInvalidRequestError("title must not be empty")
	}
	start := r.Start.OrElse(ev.StartDate())
	end := r.End.OrElse(ev.EndDate())
	if end.Before(start) {
		return NewInvalidRequestError("end must not be before start")
	}
	if alarms, ok := r.AlarmMinutes.Get(); ok {
		if err := validateAlarms(alarms); err != nil {
			return err
		}
	}
	if rule, ok := r.Recurrence.Get(); ok {
		if rule != nil {
			return rule.Validate(start)
		}
		return nil
	}
	for _, rule := range ev.RecurrenceRules() {
		if err := rule.Validate(start); err != nil {
			return err
		}
	}
	return nil
}

func validateAlarms(minutes []int) error {
	for _, m := range minutes {
		if m < 0 {
			return NewInvalidRequestError(fmt.Sprintf("alarm lead time must not be negative, got %d", m))
		}
	}
	return nil
}

// SearchWindow bounds a keyword search around now, in whole days
type SearchWindow struct {
	DaysBack    int
	DaysForward int
}

// DefaultSearchWindow covers 30 days back and 90 days forward
func DefaultSearchWindow() SearchWindow {
	return SearchWindow{DaysBack: 30, DaysForward: 90}
}

func (w SearchWindow) validate() error {
	if w.DaysBack < 0 || w.DaysForward < 0 {
		return NewInvalidRequestError("search window must not be negative")
	}
	return nil
}

// bounds returns the window around now
func (w SearchWindow) bounds(now time.Time) (time.Time, time.Time) {
	const day = 24 * time.Hour
	return now.Add(-time.Duration(w.DaysBack) * day), now.Add(time.Duration(w.DaysForward) * day)
}
