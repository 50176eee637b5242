package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Format renders the event as a single line in loc:
//
//	Standup (2026-02-12 10:00 ~ 2026-02-12 10:30) [Work] @ Room 1 | ID: abc
//
// All-day events use dates only. The calendar and location parts are omitted
// when empty.
func (e Event) Format(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	layout := dateTimeLayout
	if e.AllDay {
		layout = dateLayout
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s ~ %s)", e.Title, e.Start.In(loc).Format(layout), e.End.In(loc).Format(layout))
	if e.CalendarName != "" {
		fmt.Fprintf(&b, " [%s]", e.CalendarName)
	}
	if e.Location != "" {
		fmt.Fprintf(&b, " @ %s", e.Location)
	}
	fmt.Fprintf(&b, " | ID: %s", e.ID)
	return b.String()
}

// String formats the event in the local timezone
func (e Event) String() string {
	return e.Format(time.Local)
}

var timeLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{time.RFC3339, false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02 15:04", false},
	{dateLayout, true},
}

// ParseTime parses an ISO-8601 style timestamp. Inputs without an offset are
// interpreted in loc. dateOnly reports whether the input had no time of day.
func ParseTime(s string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if l.layout == time.RFC3339 {
			if t, err := time.Parse(l.layout, s); err == nil {
				return t, false, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, l.dateOnly, nil
		}
	}
	return time.Time{}, false, NewInvalidRequestError(fmt.Sprintf("invalid time %q (expected YYYY-MM-DD or YYYY-MM-DDTHH:MM)", s))
}

// ParseEndTime parses like ParseTime but reads a bare date as the last second
// of that day, so a range ending on a date includes the whole day.
func ParseEndTime(s string, loc *time.Location) (time.Time, error) {
	t, dateOnly, err := ParseTime(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if dateOnly {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}
