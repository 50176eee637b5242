package dav

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/native"
	"github.com/teemow/calbridge/internal/native/recur"
)

// managedProps are rewritten on every save; everything else on the master
// VEVENT is carried over untouched.
var managedProps = []string{
	ical.PropUID,
	ical.PropSummary,
	ical.PropDescription,
	ical.PropLocation,
	ical.PropURL,
	ical.PropDateTimeStart,
	ical.PropDateTimeEnd,
	ical.PropDuration,
	ical.PropDateTimeStamp,
	ical.PropLastModified,
}

var errNoMaster = errors.New("calendar object has no master VEVENT")

// masterEvent returns the VEVENT without RECURRENCE-ID
func masterEvent(cal *ical.Calendar) *ical.Component {
	if cal == nil {
		return nil
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if child.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}
		return child
	}
	return nil
}

func textProp(comp *ical.Component, name string) string {
	v, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return v
}

func isDateProp(prop *ical.Prop) bool {
	return prop.ValueType() == ical.ValueDate
}

// relativeAlarm returns the offset of a VALARM triggered relative to the
// start of the event. Absolute and end-related triggers are not managed and
// stay as they are.
func relativeAlarm(valarm *ical.Component) (time.Duration, bool) {
	trigger := valarm.Props.Get(ical.PropTrigger)
	if trigger == nil {
		return 0, false
	}
	if related := trigger.Params.Get(ical.ParamRelated); related != "" && !strings.EqualFold(related, "START") {
		return 0, false
	}
	d, err := trigger.Duration()
	if err != nil {
		return 0, false
	}
	return d, true
}

// decodeEvent builds an Event from a calendar object resource
func decodeEvent(objectPath string, data *ical.Calendar, cal *Calendar, loc *time.Location) (*Event, error) {
	comp := masterEvent(data)
	if comp == nil {
		return nil, errNoMaster
	}

	ev := &Event{
		uid:        textProp(comp, ical.PropUID),
		title:      textProp(comp, ical.PropSummary),
		notes:      textProp(comp, ical.PropDescription),
		location:   textProp(comp, ical.PropLocation),
		cal:        cal,
		objectPath: objectPath,
		data:       data,
	}
	if ev.uid == "" {
		return nil, fmt.Errorf("VEVENT at %s has no UID", objectPath)
	}
	if prop := comp.Props.Get(ical.PropURL); prop != nil {
		ev.url = prop.Value
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return nil, fmt.Errorf("VEVENT %s has no DTSTART", ev.uid)
	}
	start, err := startProp.DateTime(loc)
	if err != nil {
		return nil, fmt.Errorf("VEVENT %s has an invalid DTSTART: %w", ev.uid, err)
	}
	ev.start = start
	ev.allDay = isDateProp(startProp)

	// DTEND, else DTSTART plus DURATION, else one day for a DATE start
	end, err := (&ical.Event{Component: comp}).DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("VEVENT %s has an invalid end: %w", ev.uid, err)
	}
	ev.end = end

	for _, prop := range comp.Props.Values(ical.PropRecurrenceRule) {
		rule, err := recur.Parse(prop.Value, ev.start)
		if err != nil {
			return nil, err
		}
		ev.rules = append(ev.rules, rule)
	}

	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		if d, ok := relativeAlarm(child); ok {
			ev.alarms = append(ev.alarms, calendar.AlarmWithRelativeOffset(d))
		}
	}

	return ev, nil
}

// encodeEvent renders ev as a calendar object resource. Overrides of single
// occurrences, time zones and unmanaged properties of the previous version
// are preserved. Alarms and recurrence rules are rebuilt only when they were
// edited; even then absolute and end-related alarms are kept.
func encodeEvent(ev *Event, loc *time.Location, now time.Time) (*ical.Calendar, error) {
	out := ical.NewCalendar()
	var master *ical.Component

	if ev.data != nil {
		maps.Copy(out.Props, ev.data.Props)
		for _, child := range ev.data.Children {
			if master == nil && child.Name == ical.CompEvent && child.Props.Get(ical.PropRecurrenceID) == nil {
				master = &ical.Component{Name: ical.CompEvent, Props: maps.Clone(child.Props)}
				for _, sub := range child.Children {
					if ev.alarmsChanged && sub.Name == ical.CompAlarm {
						if _, managed := relativeAlarm(sub); managed {
							continue
						}
					}
					master.Children = append(master.Children, sub)
				}
				out.Children = append(out.Children, master)
				continue
			}
			out.Children = append(out.Children, child)
		}
	}
	if master == nil {
		master = ical.NewEvent().Component
		out.Children = append(out.Children, master)
	}

	out.Props.SetText(ical.PropVersion, "2.0")
	out.Props.SetText(ical.PropProductID, productID)

	for _, name := range managedProps {
		master.Props.Del(name)
	}

	master.Props.SetText(ical.PropUID, ev.uid)
	master.Props.SetText(ical.PropSummary, ev.title)
	if ev.notes != "" {
		master.Props.SetText(ical.PropDescription, ev.notes)
	}
	if ev.location != "" {
		master.Props.SetText(ical.PropLocation, ev.location)
	}
	if ev.url != "" {
		prop := ical.NewProp(ical.PropURL)
		prop.Value = ev.url
		master.Props.Set(prop)
	}

	if ev.allDay {
		start, end := native.SnapToDays(ev.start, ev.end, loc)
		master.Props.SetDate(ical.PropDateTimeStart, start)
		master.Props.SetDate(ical.PropDateTimeEnd, end)
	} else {
		master.Props.SetDateTime(ical.PropDateTimeStart, ev.start.UTC())
		master.Props.SetDateTime(ical.PropDateTimeEnd, ev.end.UTC())
	}

	if ev.data == nil || ev.rulesChanged {
		master.Props.Del(ical.PropRecurrenceRule)
		for _, rule := range ev.rules {
			value, err := formatRule(rule, ev.allDay, loc)
			if err != nil {
				return nil, err
			}
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.Value = value
			master.Props.Add(prop)
		}
	}

	if ev.data == nil || ev.alarmsChanged {
		for _, alarm := range ev.alarms {
			valarm := ical.NewComponent(ical.CompAlarm)
			valarm.Props.SetText(ical.PropAction, "DISPLAY")
			valarm.Props.SetText(ical.PropDescription, ev.title)
			trigger := ical.NewProp(ical.PropTrigger)
			trigger.SetDuration(alarm.RelativeOffset)
			valarm.Props.Set(trigger)
			master.Children = append(master.Children, valarm)
		}
	}

	master.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	master.Props.SetDateTime(ical.PropLastModified, now.UTC())
	return out, nil
}

func formatRule(rule calendar.RecurrenceRule, allDay bool, loc *time.Location) (string, error) {
	if allDay {
		return recur.FormatAllDay(rule, loc)
	}
	return recur.Format(rule)
}
