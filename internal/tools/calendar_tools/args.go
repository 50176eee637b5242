package calendar_tools

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
)

// requiredString returns a non-blank string argument
func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// optionalString distinguishes an absent argument from a present one. With
// clearable set, an explicit null yields an empty string.
func optionalString(args map[string]any, key string, clearable bool) (calendar.Optional[string], error) {
	v, present := args[key]
	if !present {
		return calendar.None[string](), nil
	}
	switch s := v.(type) {
	case nil:
		if clearable {
			return calendar.Some(""), nil
		}
		return calendar.None[string](), nil
	case string:
		return calendar.Some(s), nil
	default:
		return calendar.None[string](), fmt.Errorf("%s must be a string", key)
	}
}

func optionalBool(args map[string]any, key string) (calendar.Optional[bool], error) {
	switch b := args[key].(type) {
	case nil:
		return calendar.None[bool](), nil
	case bool:
		return calendar.Some(b), nil
	default:
		return calendar.None[bool](), fmt.Errorf("%s must be a boolean", key)
	}
}

// toInt accepts JSON numbers that hold whole values
func toInt(v any, key string) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func optionalInt(args map[string]any, key string) (calendar.Optional[int], error) {
	v, present := args[key]
	if !present || v == nil {
		return calendar.None[int](), nil
	}
	n, err := toInt(v, key)
	if err != nil {
		return calendar.None[int](), err
	}
	return calendar.Some(n), nil
}

// parseTimeArg parses an ISO-8601 argument in loc. A bare date used as the
// end of a range means the end of that day.
func parseTimeArg(value, key string, loc *time.Location, endOfDay bool) (time.Time, error) {
	t, dateOnly, err := calendar.ParseTime(value, loc)
	if err != nil {
		return time.Time{}, calendar.NewInvalidRequestError(
			fmt.Sprintf("invalid %s %q (expected YYYY-MM-DD or YYYY-MM-DDTHH:MM)", key, value))
	}
	if dateOnly && endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}

func optionalTime(args map[string]any, key string, loc *time.Location, endOfDay bool) (calendar.Optional[time.Time], error) {
	s, err := optionalString(args, key, false)
	if err != nil {
		return calendar.None[time.Time](), err
	}
	value, ok := s.Get()
	if !ok {
		return calendar.None[time.Time](), nil
	}
	t, err := parseTimeArg(value, key, loc, endOfDay)
	if err != nil {
		return calendar.None[time.Time](), err
	}
	return calendar.Some(t), nil
}

// alarmMinutes reads a list of lead times in minutes
func alarmMinutes(v any, key string) ([]int, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of numbers", key)
	}
	minutes := make([]int, 0, len(items))
	for i, item := range items {
		n, err := toInt(item, fmt.Sprintf("%s[%d]", key, i))
		if err != nil {
			return nil, err
		}
		minutes = append(minutes, n)
	}
	return minutes, nil
}

// recurrenceRule reads {"frequency", "interval", "end_date"}
func recurrenceRule(v any, key string, loc *time.Location) (*calendar.RecurrenceRule, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", key)
	}

	freq, err := requiredString(obj, "frequency")
	if err != nil {
		return nil, fmt.Errorf("%s.%w", key, err)
	}
	frequency, err := calendar.ParseFrequency(freq)
	if err != nil {
		return nil, err
	}
	rule := &calendar.RecurrenceRule{Frequency: frequency}

	interval, err := optionalInt(obj, "interval")
	if err != nil {
		return nil, fmt.Errorf("%s.%w", key, err)
	}
	rule.Interval = interval.OrElse(0)
	if interval.IsSet() && rule.Interval < 1 {
		return nil, calendar.NewInvalidRequestError(fmt.Sprintf("recurrence interval must be positive, got %d", rule.Interval))
	}

	end, err := optionalString(obj, "end_date", false)
	if err != nil {
		return nil, fmt.Errorf("%s.%w", key, err)
	}
	if value, ok := end.Get(); ok && value != "" {
		rule.End, err = parseTimeArg(value, key+".end_date", loc, true)
		if err != nil {
			return nil, err
		}
	}
	return rule, nil
}
