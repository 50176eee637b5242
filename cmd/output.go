package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
)

// printer renders command output. Styles degrade to plain text when w is not
// a color terminal, so piped output keeps the line format intact.
type printer struct {
	w       io.Writer
	heading lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "75"}),
		muted:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "243"}),
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *printer) title(s string) {
	fmt.Fprintln(p.w, p.heading.Render(s))
}

func (p *printer) done(s string) {
	fmt.Fprintln(p.w, p.success.Render(s))
}

func (p *printer) errorLine(err error) {
	fmt.Fprintln(p.w, p.failure.Render(access.ErrorText(err)))
}

// event prints the line format with the ID part muted
func (p *printer) event(ev calendar.Event, loc *time.Location) {
	text := ev.Format(loc)
	if i := strings.LastIndex(text, " | ID: "); i >= 0 {
		text = text[:i] + p.muted.Render(text[i:])
	}
	fmt.Fprintln(p.w, text)
}

func (p *printer) events(events []calendar.Event, loc *time.Location, empty string) {
	if len(events) == 0 {
		fmt.Fprintln(p.w, p.muted.Render(empty))
		return
	}
	for _, ev := range events {
		p.event(ev, loc)
	}
}

// agenda prints events grouped under one heading per day from start up to
// end. Days without events are listed too.
func (p *printer) agenda(events []calendar.Event, start, end time.Time, loc *time.Location) {
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)

		var todays []calendar.Event
		for _, ev := range events {
			if (ev.Start.Before(next) && ev.End.After(day)) || ev.Start.Equal(day) {
				todays = append(todays, ev)
			}
		}

		p.title(day.In(loc).Format("Monday, 2 January 2006"))
		if len(todays) == 0 {
			p.line(p.muted.Render("  nothing scheduled"))
		}
		for _, ev := range todays {
			fmt.Fprint(p.w, "  ")
			p.event(ev, loc)
		}
	}
}
