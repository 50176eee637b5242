// Package recur converts calendar.RecurrenceRule values to and from RFC 5545
// RRULE strings and expands series into occurrences.
package recur

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/teemow/calbridge/internal/calendar"
)

// maxOccurrences caps the expansion of one series inside a query window
const maxOccurrences = 1000

var toRRuleFreq = map[calendar.Frequency]rrule.Frequency{
	calendar.FrequencyDaily:   rrule.DAILY,
	calendar.FrequencyWeekly:  rrule.WEEKLY,
	calendar.FrequencyMonthly: rrule.MONTHLY,
	calendar.FrequencyYearly:  rrule.YEARLY,
}

// ToROption builds the rrule-go option for r anchored at dtstart
func ToROption(r calendar.RecurrenceRule, dtstart time.Time) (rrule.ROption, error) {
	freq, ok := toRRuleFreq[r.Frequency]
	if !ok {
		return rrule.ROption{}, fmt.Errorf("unsupported frequency %q", r.Frequency)
	}
	opt := rrule.ROption{
		Freq:     freq,
		Interval: r.EffectiveInterval(),
		Dtstart:  dtstart,
	}
	if r.HasEnd() {
		opt.Until = r.End.UTC()
	}
	return opt, nil
}

// Format returns the RRULE value for r, without the "RRULE:" prefix
func Format(r calendar.RecurrenceRule) (string, error) {
	opt, err := ToROption(r, time.Time{})
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// FormatAllDay is Format for a series whose DTSTART is a DATE. UNTIL must then
// be a DATE too, so the last day is taken in loc.
func FormatAllDay(r calendar.RecurrenceRule, loc *time.Location) (string, error) {
	opt, err := ToROption(r, time.Time{})
	if err != nil {
		return "", err
	}
	opt.Until = time.Time{}
	value := opt.RRuleString()
	if r.HasEnd() {
		value += ";UNTIL=" + r.End.In(loc).Format(rrule.DateFormat)
	}
	return value, nil
}

// untilIsDate reports whether the UNTIL part of an RRULE value is a DATE
func untilIsDate(value string) bool {
	for part := range strings.SplitSeq(value, ";") {
		if v, ok := strings.CutPrefix(strings.ToUpper(part), "UNTIL="); ok {
			return len(v) == len(rrule.DateFormat)
		}
	}
	return false
}

// Parse reads an RRULE value. Only the frequency, interval and end of the rule
// are kept; a COUNT limit is turned into an end instant when dtstart is known.
// A DATE UNTIL is read in the location of dtstart and ends with that day.
func Parse(value string, dtstart time.Time) (calendar.RecurrenceRule, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	loc := time.UTC
	if !dtstart.IsZero() {
		loc = dtstart.Location()
	}
	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		return calendar.RecurrenceRule{}, fmt.Errorf("failed to parse RRULE %q: %w", value, err)
	}

	rule := calendar.RecurrenceRule{Interval: opt.Interval}
	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = calendar.FrequencyDaily
	case rrule.WEEKLY:
		rule.Frequency = calendar.FrequencyWeekly
	case rrule.MONTHLY:
		rule.Frequency = calendar.FrequencyMonthly
	case rrule.YEARLY:
		rule.Frequency = calendar.FrequencyYearly
	default:
		return calendar.RecurrenceRule{}, fmt.Errorf("unsupported RRULE frequency %v", opt.Freq)
	}
	rule.Interval = rule.EffectiveInterval()

	switch {
	case !opt.Until.IsZero() && untilIsDate(value):
		rule.End = opt.Until.AddDate(0, 0, 1).Add(-time.Second).UTC()
	case !opt.Until.IsZero():
		rule.End = opt.Until.UTC()
	case opt.Count > 0 && !dtstart.IsZero():
		opt.Dtstart = dtstart
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return calendar.RecurrenceRule{}, fmt.Errorf("failed to build RRULE: %w", err)
		}
		if all := r.All(); len(all) > 0 {
			rule.End = all[len(all)-1].UTC()
		}
	}
	return rule, nil
}

// Occurrence is one instance of a series
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Between returns the occurrences of a series that overlap [from, to].
// start and end are the first occurrence; every occurrence keeps its duration.
func Between(r calendar.RecurrenceRule, start, end, from, to time.Time) ([]Occurrence, error) {
	opt, err := ToROption(r, start)
	if err != nil {
		return nil, err
	}
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build RRULE: %w", err)
	}

	dur := end.Sub(start)
	starts := rr.Between(from.Add(-dur), to, true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, Occurrence{Start: s, End: s.Add(dur)})
	}
	return out, nil
}
