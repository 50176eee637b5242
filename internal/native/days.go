package native

import "time"

// SnapToDays widens [start, end] to whole days in loc, the way host stores
// normalize all-day events. The result always covers at least one day.
func SnapToDays(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	startDay := Midnight(start.In(loc))
	endDay := Midnight(end.In(loc))
	if endDay.Before(end) || !endDay.After(startDay) {
		endDay = endDay.AddDate(0, 0, 1)
	}
	return startDay, endDay
}

// Midnight returns the start of t's day in t's location
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Overlaps reports whether [start, end] and [from, to] share an instant
func Overlaps(start, end, from, to time.Time) bool {
	return !end.Before(from) && !start.After(to)
}
