package access

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
)

// ErrorText renders any error the way callers show it
func ErrorText(err error) string {
	return "Error: " + err.Error()
}

// EventLines renders one line per event in loc
func EventLines(events []calendar.Event, loc *time.Location) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Format(loc))
	}
	return strings.Join(lines, "\n")
}

// ListEventsText renders a list result
func ListEventsText(events []calendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No events in this period."
	}
	return EventLines(events, loc)
}

// SearchEventsText renders a search result
func SearchEventsText(keyword string, events []calendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		return fmt.Sprintf("No events found for '%s'.", keyword)
	}
	return fmt.Sprintf("Search results (%d):\n%s", len(events), EventLines(events, loc))
}

// CalendarsText renders calendar names as a bullet list
func CalendarsText(names []string) string {
	if len(names) == 0 {
		return "No calendars available."
	}
	lines := make([]string, 0, len(names))
	for _, n := range names {
		lines = append(lines, "- "+n)
	}
	return strings.Join(lines, "\n")
}

func CreatedText(ev calendar.Event) string {
	return fmt.Sprintf("Created event: %s (ID: %s)", ev.Title, ev.ID)
}

func UpdatedText(ev calendar.Event) string {
	return fmt.Sprintf("Updated event: %s (ID: %s)", ev.Title, ev.ID)
}

func DeletedText(title string) string {
	return "Deleted event: " + title
}

// DetailsText renders the line format followed by the fields it leaves out
func DetailsText(ev calendar.Event, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(ev.Format(loc))
	if ev.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", ev.Notes)
	}
	if ev.URL != "" {
		fmt.Fprintf(&b, "\nURL: %s", ev.URL)
	}
	if ev.AllDay {
		b.WriteString("\nAll day: yes")
	}
	if ev.IsRecurring {
		b.WriteString("\nRecurring: yes")
	}
	return b.String()
}
