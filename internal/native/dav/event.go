package dav

import (
	"slices"
	"time"

	"github.com/emersion/go-ical"

	"github.com/teemow/calbridge/internal/calendar"
)

// Calendar is a calendar collection on the server
type Calendar struct {
	path  string
	title string
}

func (c *Calendar) Title() string { return c.title }

// Path is the collection path on the server
func (c *Calendar) Path() string { return c.path }

// Event is one VEVENT master of a calendar object resource
type Event struct {
	uid      string
	title    string
	start    time.Time
	end      time.Time
	allDay   bool
	location string
	notes    string
	url      string
	cal      *Calendar
	alarms   []calendar.Alarm
	rules    []calendar.RecurrenceRule

	// objectPath is where the resource lives now; empty until first saved
	objectPath string
	// data is the resource as last read, kept so that properties calbridge
	// does not manage survive a save
	data *ical.Calendar

	// alarmsChanged and rulesChanged mark the VALARMs and RRULEs of data as
	// stale; untouched ones are written back verbatim
	alarmsChanged bool
	rulesChanged  bool
}

func (e *Event) clone() *Event {
	c := *e
	c.alarms = slices.Clone(e.alarms)
	c.rules = slices.Clone(e.rules)
	return &c
}

func (e *Event) Identifier() string       { return e.uid }
func (e *Event) Title() string            { return e.title }
func (e *Event) SetTitle(title string)    { e.title = title }
func (e *Event) StartDate() time.Time     { return e.start }
func (e *Event) SetStartDate(t time.Time) { e.start = t }
func (e *Event) EndDate() time.Time       { return e.end }
func (e *Event) SetEndDate(t time.Time)   { e.end = t }
func (e *Event) IsAllDay() bool           { return e.allDay }
func (e *Event) SetAllDay(allDay bool) {
	// UNTIL follows the value type of DTSTART
	if allDay != e.allDay {
		e.rulesChanged = true
	}
	e.allDay = allDay
}

func (e *Event) Location() string      { return e.location }
func (e *Event) SetLocation(l string)  { e.location = l }
func (e *Event) Notes() string         { return e.notes }
func (e *Event) SetNotes(notes string) { e.notes = notes }
func (e *Event) URL() string           { return e.url }
func (e *Event) SetURL(url string)     { e.url = url }

func (e *Event) Calendar() calendar.NativeCalendar {
	if e.cal == nil {
		return nil
	}
	return e.cal
}

func (e *Event) SetCalendar(cal calendar.NativeCalendar) {
	c, _ := cal.(*Calendar)
	e.cal = c
}

func (e *Event) Alarms() []calendar.Alarm {
	return slices.Clone(e.alarms)
}

func (e *Event) AddAlarm(alarm calendar.Alarm) {
	e.alarms = append(e.alarms, alarm)
	e.alarmsChanged = true
}

func (e *Event) RemoveAlarm(alarm calendar.Alarm) {
	if i := slices.Index(e.alarms, alarm); i >= 0 {
		e.alarms = slices.Delete(e.alarms, i, i+1)
		e.alarmsChanged = true
	}
}

func (e *Event) RecurrenceRules() []calendar.RecurrenceRule {
	return slices.Clone(e.rules)
}

func (e *Event) AddRecurrenceRule(rule calendar.RecurrenceRule) {
	e.rules = append(e.rules, rule)
	e.rulesChanged = true
}

func (e *Event) RemoveRecurrenceRule(rule calendar.RecurrenceRule) {
	if i := slices.IndexFunc(e.rules, rule.Equal); i >= 0 {
		e.rules = slices.Delete(e.rules, i, i+1)
		e.rulesChanged = true
	}
}

func (e *Event) HasRecurrenceRules() bool {
	return len(e.rules) > 0
}
