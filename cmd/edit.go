package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
)

// eventFlags are the event fields shared by add and edit
type eventFlags struct {
	calendar string
	location string
	notes    string
	url      string
	allDay   bool
	alarms   []int
	repeat   string
	interval int
	until    string
}

func (f *eventFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.calendar, "calendar", "c", "", "Calendar name (default: the default calendar for new events)")
	fs.StringVarP(&f.location, "location", "l", "", "Location")
	fs.StringVarP(&f.notes, "notes", "n", "", "Notes")
	fs.StringVar(&f.url, "url", "", "URL attached to the event")
	fs.BoolVar(&f.allDay, "all-day", false, "All-day event; times are widened to whole days")
	fs.IntSliceVar(&f.alarms, "alarm", nil, "Alarm N minutes before the start (repeatable)")
	fs.StringVar(&f.repeat, "repeat", "", "Repeat daily, weekly, monthly or yearly")
	fs.IntVar(&f.interval, "interval", 0, "Repeat every N periods (default: 1)")
	fs.StringVar(&f.until, "until", "", "Last day of the series (default: never ends)")
}

// recurrence builds the rule from --repeat, --interval and --until. It is nil
// without --repeat.
func (f *eventFlags) recurrence(fs *pflag.FlagSet, loc *time.Location) (*calendar.RecurrenceRule, error) {
	if f.repeat == "" {
		if fs.Changed("interval") || fs.Changed("until") {
			return nil, calendar.NewInvalidRequestError("--interval and --until need --repeat")
		}
		return nil, nil
	}

	freq, err := calendar.ParseFrequency(f.repeat)
	if err != nil {
		return nil, err
	}
	if fs.Changed("interval") && f.interval < 1 {
		return nil, calendar.NewInvalidRequestError(fmt.Sprintf("recurrence interval must be positive, got %d", f.interval))
	}

	rule := &calendar.RecurrenceRule{Frequency: freq, Interval: f.interval}
	if f.until != "" {
		if rule.End, err = calendar.ParseEndTime(f.until, loc); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func newAddCmd() *cobra.Command {
	var flags eventFlags

	cmd := &cobra.Command{
		Use:   "add <title> <start> <end>",
		Short: "Create an event",
		Long: `Create an event. Start and end are ISO 8601 times in the configured
timezone, for example 2026-02-10T09:00, or bare dates. A bare end date
includes that day.

Examples:
  calbridge add "Standup" 2026-02-10T09:00 2026-02-10T09:15 -c Work --repeat daily
  calbridge add "Offsite" 2026-03-02 2026-03-03 --all-day --alarm 1440`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				req, err := flags.createRequest(cmd.Flags(), args, env.loc)
				if err != nil {
					return err
				}
				ev, err := access.CreateEvent(cmd.Context(), s.client, req)
				if err != nil {
					return err
				}
				newPrinter(cmd.OutOrStdout()).done(access.CreatedText(ev))
				return nil
			})
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func (f *eventFlags) createRequest(fs *pflag.FlagSet, args []string, loc *time.Location) (calendar.CreateEventRequest, error) {
	start, _, err := calendar.ParseTime(args[1], loc)
	if err != nil {
		return calendar.CreateEventRequest{}, err
	}
	end, err := calendar.ParseEndTime(args[2], loc)
	if err != nil {
		return calendar.CreateEventRequest{}, err
	}
	rule, err := f.recurrence(fs, loc)
	if err != nil {
		return calendar.CreateEventRequest{}, err
	}

	return calendar.CreateEventRequest{
		Title:        args[0],
		Start:        start,
		End:          end,
		CalendarName: f.calendar,
		Location:     f.location,
		Notes:        f.notes,
		URL:          f.url,
		AlarmMinutes: f.alarms,
		AllDay:       f.allDay,
		Recurrence:   rule,
	}, nil
}

// editFlags adds the fields only edit can change
type editFlags struct {
	eventFlags
	title       string
	start       string
	end         string
	clearAlarms bool
	noRepeat    bool
}

func newEditCmd() *cobra.Command {
	var flags editFlags

	cmd := &cobra.Command{
		Use:   "edit <event-id>",
		Short: "Change fields of an event",
		Long: `Change the given fields of an event and leave the rest alone. Pass an
empty string to clear the location, notes or URL. A recurring event is changed
from the given occurrence on.

Examples:
  calbridge edit <id> --title "Design review" --end 2026-02-10T16:00
  calbridge edit <id> --clear-alarms --alarm 10
  calbridge edit <id> --no-repeat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				req, err := flags.updateRequest(cmd.Flags(), env.loc)
				if err != nil {
					return err
				}
				ev, err := access.UpdateEvent(cmd.Context(), s.client, args[0], req)
				if err != nil {
					return err
				}
				newPrinter(cmd.OutOrStdout()).done(access.UpdatedText(ev))
				return nil
			})
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&flags.title, "title", "", "New title")
	cmd.Flags().StringVar(&flags.start, "start", "", "New start")
	cmd.Flags().StringVar(&flags.end, "end", "", "New end")
	cmd.Flags().BoolVar(&flags.clearAlarms, "clear-alarms", false, "Remove all alarms (combine with --alarm to replace them)")
	cmd.Flags().BoolVar(&flags.noRepeat, "no-repeat", false, "Stop the event from repeating")
	cmd.MarkFlagsMutuallyExclusive("repeat", "no-repeat")
	return cmd
}

var errNoChanges = errors.New("nothing to change; pass at least one field flag")

// updateRequest maps the flags the user passed onto a partial update
func (f *editFlags) updateRequest(fs *pflag.FlagSet, loc *time.Location) (calendar.UpdateEventRequest, error) {
	var req calendar.UpdateEventRequest

	strs := []struct {
		flag string
		val  string
		dst  *calendar.Optional[string]
	}{
		{"title", f.title, &req.Title},
		{"calendar", f.calendar, &req.CalendarName},
		{"location", f.location, &req.Location},
		{"notes", f.notes, &req.Notes},
		{"url", f.url, &req.URL},
	}
	for _, s := range strs {
		if fs.Changed(s.flag) {
			*s.dst = calendar.Some(s.val)
		}
	}

	if fs.Changed("start") {
		t, _, err := calendar.ParseTime(f.start, loc)
		if err != nil {
			return req, err
		}
		req.Start = calendar.Some(t)
	}
	if fs.Changed("end") {
		t, err := calendar.ParseEndTime(f.end, loc)
		if err != nil {
			return req, err
		}
		req.End = calendar.Some(t)
	}
	if fs.Changed("all-day") {
		req.AllDay = calendar.Some(f.allDay)
	}

	switch {
	case fs.Changed("alarm"):
		req.AlarmMinutes = calendar.Some(f.alarms)
	case f.clearAlarms:
		req.AlarmMinutes = calendar.Some([]int{})
	}

	if f.noRepeat {
		if fs.Changed("interval") || fs.Changed("until") {
			return req, calendar.NewInvalidRequestError("--no-repeat cannot be combined with --interval or --until")
		}
		req.Recurrence = calendar.Some[*calendar.RecurrenceRule](nil)
	} else {
		rule, err := f.recurrence(fs, loc)
		if err != nil {
			return req, err
		}
		if rule != nil {
			req.Recurrence = calendar.Some(rule)
		}
	}

	if req.IsEmpty() {
		return req, errNoChanges
	}
	return req, nil
}
