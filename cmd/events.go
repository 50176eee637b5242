package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/native"
)

// now is replaced in tests
var now = time.Now

func newCalendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List calendar names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				names, err := access.ListCalendars(cmd.Context(), s.client)
				if err != nil {
					return err
				}
				newPrinter(cmd.OutOrStdout()).line(access.CalendarsText(names))
				return nil
			})
		},
	}
}

func newTodayCmd() *cobra.Command {
	var calendarName string

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show today's events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				start := native.Midnight(now().In(env.loc))
				end := start.AddDate(0, 0, 1)

				events, err := access.ListEvents(cmd.Context(), s.client, start, end, calendarName)
				if err != nil {
					return err
				}
				p := newPrinter(cmd.OutOrStdout())
				p.title("Today, " + start.Format("Monday 2 January"))
				p.events(events, env.loc, "No events in this period.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&calendarName, "calendar", "c", "", "Only show events of this calendar")
	return cmd
}

// weekStart returns the Monday starting t's week
func weekStart(t time.Time) time.Time {
	day := native.Midnight(t)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}

func newWeekCmd() *cobra.Command {
	var (
		offset       int
		calendarName string
	)

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show a week's events grouped by day",
		Long: `Show the events of the current week, Monday to Sunday, grouped by day.
Use -o to move by whole weeks: -o 1 is next week, -o -1 last week.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				start := weekStart(now().In(env.loc)).AddDate(0, 0, 7*offset)
				end := start.AddDate(0, 0, 7)

				events, err := access.ListEvents(cmd.Context(), s.client, start, end, calendarName)
				if err != nil {
					return err
				}
				newPrinter(cmd.OutOrStdout()).agenda(events, start, end, env.loc)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&offset, "offset", "o", 0, "Week offset from the current week")
	cmd.Flags().StringVarP(&calendarName, "calendar", "c", "", "Only show events of this calendar")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		calendarName string
		daysBack     int
		daysForward  int
	)

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search events by keyword in title, notes and location",
		Long: `Search events whose title, notes or location contain the keyword,
ignoring case. The search covers 30 days back and 90 days forward unless the
configuration or the flags say otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				opts := access.SearchOptions{
					CalendarName: calendarName,
					DaysBack:     calendar.Some(env.cfg.Search.DaysBack),
					DaysForward:  calendar.Some(env.cfg.Search.DaysForward),
				}
				if cmd.Flags().Changed("days-back") {
					opts.DaysBack = calendar.Some(daysBack)
				}
				if cmd.Flags().Changed("days-forward") {
					opts.DaysForward = calendar.Some(daysForward)
				}

				events, err := access.SearchEvents(cmd.Context(), s.client, args[0], opts)
				if err != nil {
					return err
				}
				p := newPrinter(cmd.OutOrStdout())
				if len(events) > 0 {
					p.title(fmt.Sprintf("Search results (%d):", len(events)))
				}
				p.events(events, env.loc, fmt.Sprintf("No events found for '%s'.", args[0]))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&calendarName, "calendar", "c", "", "Only search this calendar")
	cmd.Flags().IntVar(&daysBack, "days-back", 30, "Days before now to search")
	cmd.Flags().IntVar(&daysForward, "days-forward", 90, "Days after now to search")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show the details of one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				ev, err := access.GetEvent(cmd.Context(), s.client, args[0])
				if err != nil {
					return err
				}
				newPrinter(cmd.OutOrStdout()).line(access.DetailsText(ev, env.loc))
				return nil
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <event-id>...",
		Aliases: []string{"delete"},
		Short:   "Delete events",
		Long: `Delete events by ID. A recurring event is deleted from the given
occurrence on; earlier occurrences stay.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(env *environment, s *session) error {
				p := newPrinter(cmd.OutOrStdout())
				failed := 0
				for _, id := range args {
					title, err := access.DeleteEvent(cmd.Context(), s.client, id)
					if err != nil {
						if len(args) == 1 {
							return err
						}
						p.errorLine(fmt.Errorf("%s: %w", id, err))
						failed++
						continue
					}
					p.done(access.DeletedText(title))
				}
				if failed > 0 {
					return fmt.Errorf("failed to delete %d of %d events", failed, len(args))
				}
				return nil
			})
		},
	}
}
