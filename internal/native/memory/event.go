package memory

import (
	"slices"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
)

// Event is the memory store's mutable event record
type Event struct {
	id       string
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
}

func (e *Event) clone() *Event {
	c := *e
	c.alarms = slices.Clone(e.alarms)
	c.rules = slices.Clone(e.rules)
	return &c
}

func (e *Event) Identifier() string       { return e.id }
func (e *Event) Title() string            { return e.title }
func (e *Event) SetTitle(title string)    { e.title = title }
func (e *Event) StartDate() time.Time     { return e.start }
func (e *Event) SetStartDate(t time.Time) { e.start = t }
func (e *Event) EndDate() time.Time       { return e.end }
func (e *Event) SetEndDate(t time.Time)   { e.end = t }
func (e *Event) IsAllDay() bool           { return e.allDay }
func (e *Event) SetAllDay(allDay bool)    { e.allDay = allDay }
func (e *Event) Location() string         { return e.location }
func (e *Event) SetLocation(l string)     { e.location = l }
func (e *Event) Notes() string            { return e.notes }
func (e *Event) SetNotes(notes string)    { e.notes = notes }
func (e *Event) URL() string              { return e.url }
func (e *Event) SetURL(url string)        { e.url = url }

func (e *Event) Calendar() calendar.NativeCalendar {
	if e.cal == nil {
		return nil
	}
	return e.cal
}

// SetCalendar accepts only handles of the memory store; anything else clears
// the calendar and fails on save.
func (e *Event) SetCalendar(cal calendar.NativeCalendar) {
	c, _ := cal.(*Calendar)
	e.cal = c
}

func (e *Event) Alarms() []calendar.Alarm {
	return slices.Clone(e.alarms)
}

func (e *Event) AddAlarm(alarm calendar.Alarm) {
	e.alarms = append(e.alarms, alarm)
}

func (e *Event) RemoveAlarm(alarm calendar.Alarm) {
	if i := slices.Index(e.alarms, alarm); i >= 0 {
		e.alarms = slices.Delete(e.alarms, i, i+1)
	}
}

func (e *Event) RecurrenceRules() []calendar.RecurrenceRule {
	return slices.Clone(e.rules)
}

func (e *Event) AddRecurrenceRule(rule calendar.RecurrenceRule) {
	e.rules = append(e.rules, rule)
}

func (e *Event) RemoveRecurrenceRule(rule calendar.RecurrenceRule) {
	if i := slices.IndexFunc(e.rules, rule.Equal); i >= 0 {
		e.rules = slices.Delete(e.rules, i, i+1)
	}
}

func (e *Event) HasRecurrenceRules() bool {
	return len(e.rules) > 0
}
