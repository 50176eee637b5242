package dav

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/calendar/calendartest"
	"github.com/teemow/calbridge/internal/logging"
)

var testConfig = Config{
	Username: "user@example.com",
	Password: "abcd-efgh-ijkl-mnop",
}

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, cfg Config, opts ...Option) (*Store, *fakeDAV, *fakeLedger) {
	t.Helper()
	client := newFakeDAV()
	ledger := newFakeLedger()
	opts = append([]Option{WithLocation(time.UTC), WithLogger(logging.Discard())}, opts...)
	s := newStore(cfg, client, ledger, opts...)
	s.now = func() time.Time { return fixedNow }
	return s, client, ledger
}

func defaultCalendar(t *testing.T, s *Store) calendar.NativeCalendar {
	t.Helper()
	cal, err := s.DefaultCalendarForNewEvents(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cal)
	return cal
}

func TestStore_Calendars(t *testing.T) {
	s, _, _ := newTestStore(t, testConfig)

	cals, err := s.Calendars(context.Background())
	require.NoError(t, err)

	var titles []string
	for _, c := range cals {
		titles = append(titles, c.Title())
	}
	// collections without VEVENT support are not calendars for events
	assert.Equal(t, []string{"Home", "Work"}, titles)
}

func TestStore_CalendarHomeSetIsCached(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	_, err := s.Calendars(ctx)
	require.NoError(t, err)
	_, err = s.Calendars(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, client.principals)
}

func TestStore_DefaultCalendar(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		want       string
		wantNil    bool
	}{
		{name: "first calendar", want: "Home"},
		{name: "configured", configured: "Work", want: "Work"},
		{name: "configured but missing", configured: "Family", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig
			cfg.DefaultCalendar = tt.configured
			s, _, _ := newTestStore(t, cfg)

			cal, err := s.DefaultCalendarForNewEvents(context.Background())
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cal)
				return
			}
			require.NotNil(t, cal)
			assert.Equal(t, tt.want, cal.Title())
		})
	}
}

func TestStore_SaveAndFind(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	ev := s.NewEvent()
	ev.SetTitle("Dentist, downtown")
	ev.SetStartDate(time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC))
	ev.SetEndDate(time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC))
	ev.SetLocation("Main St. 1")
	ev.SetNotes("bring card; ask about x-ray")
	ev.SetURL("https://example.com/booking?id=7&x=1")
	ev.SetCalendar(defaultCalendar(t, s))
	ev.AddAlarm(calendar.AlarmBefore(15))
	ev.AddAlarm(calendar.AlarmBefore(24 * 60))
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))
	require.NotEmpty(t, ev.Identifier())

	assert.Equal(t, []string{"/1234/calendars/home/" + ev.Identifier() + ".ics"}, client.paths())
	raw := client.raw(client.paths()[0])
	assert.Contains(t, raw, "PRODID:-//calbridge//CalDAV//EN")
	assert.Contains(t, raw, "TRIGGER;VALUE=DURATION:-PT900S")
	assert.Contains(t, raw, "TRIGGER;VALUE=DURATION:-PT86400S")

	found, err := s.EventWithIdentifier(ctx, ev.Identifier())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Dentist, downtown", found.Title())
	assert.True(t, found.StartDate().Equal(ev.StartDate()))
	assert.True(t, found.EndDate().Equal(ev.EndDate()))
	assert.Equal(t, "Main St. 1", found.Location())
	assert.Equal(t, "bring card; ask about x-ray", found.Notes())
	assert.Equal(t, "https://example.com/booking?id=7&x=1", found.URL())
	assert.Equal(t, "Home", found.Calendar().Title())
	assert.ElementsMatch(t, []calendar.Alarm{calendar.AlarmBefore(15), calendar.AlarmBefore(24 * 60)}, found.Alarms())
	assert.False(t, found.IsAllDay())
	assert.False(t, found.HasRecurrenceRules())
}

func TestStore_EventWithIdentifierMissing(t *testing.T) {
	s, _, _ := newTestStore(t, testConfig)

	found, err := s.EventWithIdentifier(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_EventWithIdentifierIsExact(t *testing.T) {
	s, _, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	ev := s.NewEvent()
	ev.SetTitle("Lunch")
	ev.SetStartDate(fixedNow)
	ev.SetEndDate(fixedNow.Add(time.Hour))
	ev.SetCalendar(defaultCalendar(t, s))
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))

	found, err := s.EventWithIdentifier(ctx, ev.Identifier()[:8])
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_AllDayEvent(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	ev := s.NewEvent()
	ev.SetTitle("Holiday")
	ev.SetStartDate(time.Date(2026, 3, 6, 10, 30, 0, 0, time.UTC))
	ev.SetEndDate(time.Date(2026, 3, 6, 11, 0, 0, 0, time.UTC))
	ev.SetAllDay(true)
	ev.SetCalendar(defaultCalendar(t, s))
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))

	raw := client.raw(client.paths()[0])
	assert.Contains(t, raw, "DTSTART;VALUE=DATE:20260306")
	assert.Contains(t, raw, "DTEND;VALUE=DATE:20260307")

	found, err := s.EventWithIdentifier(ctx, ev.Identifier())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsAllDay())
	assert.Equal(t, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), found.StartDate())
	assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), found.EndDate())
}

func TestStore_RecurringEventsAreExpanded(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	ev := s.NewEvent()
	ev.SetTitle("Team sync")
	ev.SetStartDate(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	ev.SetEndDate(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
	ev.SetCalendar(defaultCalendar(t, s))
	ev.AddRecurrenceRule(calendar.RecurrenceRule{
		Frequency: calendar.FrequencyWeekly,
		Interval:  1,
		End:       time.Date(2026, 3, 23, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanFutureEvents))
	assert.Contains(t, client.raw(client.paths()[0]), "RRULE:FREQ=WEEKLY")

	events, err := s.EventsMatching(ctx, calendar.EventPredicate{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, ev.Identifier(), e.Identifier())
		assert.Equal(t, time.Date(2026, 3, 2+7*i, 9, 0, 0, 0, time.UTC), e.StartDate().UTC())
		assert.Equal(t, 30*time.Minute, e.EndDate().Sub(e.StartDate()))
		assert.True(t, e.HasRecurrenceRules())
	}

	master, err := s.EventWithIdentifier(ctx, ev.Identifier())
	require.NoError(t, err)
	require.NotNil(t, master)
	rules := master.RecurrenceRules()
	require.Len(t, rules, 1)
	assert.Equal(t, calendar.FrequencyWeekly, rules[0].Frequency)
	assert.Equal(t, 1, rules[0].Interval)
}

func TestStore_EventsMatchingFiltersCalendars(t *testing.T) {
	s, _, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	cals, err := s.Calendars(ctx)
	require.NoError(t, err)
	require.Len(t, cals, 2)

	for i, cal := range cals {
		ev := s.NewEvent()
		ev.SetTitle(cal.Title() + " meeting")
		ev.SetStartDate(fixedNow.Add(time.Duration(i) * time.Hour))
		ev.SetEndDate(fixedNow.Add(time.Duration(i)*time.Hour + 30*time.Minute))
		ev.SetCalendar(cal)
		require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))
	}

	events, err := s.EventsMatching(ctx, calendar.EventPredicate{
		Start:     fixedNow.Add(-time.Hour),
		End:       fixedNow.Add(24 * time.Hour),
		Calendars: []calendar.NativeCalendar{cals[1]},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Work meeting", events[0].Title())

	events, err = s.EventsMatching(ctx, calendar.EventPredicate{
		Start: fixedNow.Add(48 * time.Hour),
		End:   fixedNow.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_MoveBetweenCalendars(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	cals, err := s.Calendars(ctx)
	require.NoError(t, err)

	ev := s.NewEvent()
	ev.SetTitle("Review")
	ev.SetStartDate(fixedNow)
	ev.SetEndDate(fixedNow.Add(time.Hour))
	ev.SetCalendar(cals[0])
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))

	found, err := s.EventWithIdentifier(ctx, ev.Identifier())
	require.NoError(t, err)
	found.SetCalendar(cals[1])
	require.NoError(t, s.SaveEvent(ctx, found, calendar.SpanThisEvent))

	assert.Equal(t, []string{"/1234/calendars/work/" + ev.Identifier() + ".ics"}, client.paths())
}

func TestStore_SavePreservesUnmanagedProperties(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	p := "/1234/calendars/home/imported.ics"
	client.objects[p] = []byte("BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Apple Inc.//macOS 15.0//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:imported-1\r\n" +
		"DTSTAMP:20260101T000000Z\r\n" +
		"DTSTART:20260303T100000Z\r\n" +
		"DURATION:PT45M\r\n" +
		"SUMMARY:Imported\r\n" +
		"CATEGORIES:Work\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n")

	found, err := s.EventWithIdentifier(ctx, "imported-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 45*time.Minute, found.EndDate().Sub(found.StartDate()))

	found.SetTitle("Imported and renamed")
	require.NoError(t, s.SaveEvent(ctx, found, calendar.SpanThisEvent))

	// the resource keeps its name when it stays in its calendar
	assert.Equal(t, []string{p}, client.paths())
	raw := client.raw(p)
	assert.Contains(t, raw, "CATEGORIES:Work")
	assert.Contains(t, raw, "SUMMARY:Imported and renamed")
	assert.NotContains(t, raw, "DURATION")
}

func TestStore_SaveValidates(t *testing.T) {
	s, _, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	ev := s.NewEvent()
	ev.SetTitle("No calendar")
	ev.SetStartDate(fixedNow)
	ev.SetEndDate(fixedNow)
	assert.Error(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))

	ev.SetCalendar(defaultCalendar(t, s))
	ev.SetEndDate(fixedNow.Add(-time.Hour))
	assert.Error(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))
}

func TestStore_RemoveEvent(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	ev := s.NewEvent()
	ev.SetTitle("Cancelled")
	ev.SetStartDate(fixedNow)
	ev.SetEndDate(fixedNow.Add(time.Hour))
	ev.SetCalendar(defaultCalendar(t, s))
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanThisEvent))

	require.NoError(t, s.RemoveEvent(ctx, ev, calendar.SpanThisEvent))
	assert.Empty(t, client.paths())

	assert.Error(t, s.RemoveEvent(ctx, ev, calendar.SpanThisEvent))
	assert.Error(t, s.RemoveEvent(ctx, s.NewEvent(), calendar.SpanThisEvent))
}

func TestStore_ThroughClient(t *testing.T) {
	s, _, ledger := newTestStore(t, testConfig)
	ledger.grants[s.Account()] = calendar.StatusFullAccess
	ctx := context.Background()

	client, err := calendar.NewClient(s, calendar.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	created, err := client.CreateEvent(ctx, calendar.CreateEventRequest{
		Title:        "Planning",
		Start:        fixedNow.Add(2 * time.Hour),
		End:          fixedNow.Add(3 * time.Hour),
		CalendarName: "Work",
		AlarmMinutes: []int{10},
	})
	require.NoError(t, err)
	assert.Equal(t, "Work", created.CalendarName)

	updated, err := client.UpdateEvent(ctx, created.ID, calendar.UpdateEventRequest{
		Title: calendar.Some("Planning (moved)"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Planning (moved)", updated.Title)

	found, err := client.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Planning (moved)", found.Title)

	title, err := client.DeleteEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Planning (moved)", title)

	_, err = client.FindByID(ctx, created.ID)
	assert.Equal(t, calendar.KindNoSuchEvent, calendar.KindOf(err))
}

// importObject stores a resource written by another client
func importObject(client *fakeDAV, p string, lines ...string) {
	client.objects[p] = []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestStore_SaveKeepsAlarmsItDoesNotManage(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	p := "/1234/calendars/home/alarms.ics"
	importObject(client, p,
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Apple Inc.//macOS 15.0//EN",
		"BEGIN:VEVENT",
		"UID:alarms-1",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260303T100000Z",
		"DTEND:20260303T110000Z",
		"SUMMARY:Flight",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"DESCRIPTION:Check in",
		"TRIGGER;VALUE=DATE-TIME:20260303T080000Z",
		"END:VALARM",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"DESCRIPTION:Landing",
		"TRIGGER;RELATED=END:-PT5M",
		"END:VALARM",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"DESCRIPTION:Leave now",
		"TRIGGER:-PT10M",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	found, err := s.EventWithIdentifier(ctx, "alarms-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	// only alarms relative to the start are calbridge alarms
	assert.Equal(t, []calendar.Alarm{calendar.AlarmBefore(10)}, found.Alarms())

	found.SetTitle("Flight to Lisbon")
	require.NoError(t, s.SaveEvent(ctx, found, calendar.SpanThisEvent))

	raw := client.raw(p)
	assert.Equal(t, 3, strings.Count(raw, "BEGIN:VALARM"))
	assert.Contains(t, raw, "TRIGGER;VALUE=DATE-TIME:20260303T080000Z")
	assert.Contains(t, raw, "TRIGGER;RELATED=END:-PT5M")
	assert.Contains(t, raw, "TRIGGER:-PT10M")
	assert.Contains(t, raw, "DESCRIPTION:Leave now")

	found, err = s.EventWithIdentifier(ctx, "alarms-1")
	require.NoError(t, err)
	found.RemoveAlarm(calendar.AlarmBefore(10))
	found.AddAlarm(calendar.AlarmBefore(30))
	require.NoError(t, s.SaveEvent(ctx, found, calendar.SpanThisEvent))

	raw = client.raw(p)
	assert.Equal(t, 3, strings.Count(raw, "BEGIN:VALARM"))
	assert.Contains(t, raw, "TRIGGER;VALUE=DATE-TIME:20260303T080000Z")
	assert.Contains(t, raw, "TRIGGER;RELATED=END:-PT5M")
	assert.NotContains(t, raw, "TRIGGER:-PT10M")
	assert.Contains(t, raw, "TRIGGER;VALUE=DURATION:-PT1800S")

	found, err = s.EventWithIdentifier(ctx, "alarms-1")
	require.NoError(t, err)
	assert.Equal(t, []calendar.Alarm{calendar.AlarmBefore(30)}, found.Alarms())
}

func TestStore_SaveKeepsRecurrenceDetails(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	p := "/1234/calendars/home/gym.ics"
	importObject(client, p,
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Apple Inc.//macOS 15.0//EN",
		"BEGIN:VEVENT",
		"UID:gym-1",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260302T070000Z",
		"DTEND:20260302T080000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE",
		"SUMMARY:Gym",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	found, err := s.EventWithIdentifier(ctx, "gym-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	found.SetLocation("Downtown")
	require.NoError(t, s.SaveEvent(ctx, found, calendar.SpanFutureEvents))
	assert.Contains(t, client.raw(p), "BYDAY=MO,WE")

	found, err = s.EventWithIdentifier(ctx, "gym-1")
	require.NoError(t, err)
	for _, rule := range found.RecurrenceRules() {
		found.RemoveRecurrenceRule(rule)
	}
	found.AddRecurrenceRule(calendar.RecurrenceRule{Frequency: calendar.FrequencyDaily, Interval: 1})
	require.NoError(t, s.SaveEvent(ctx, found, calendar.SpanFutureEvents))

	raw := client.raw(p)
	assert.NotContains(t, raw, "BYDAY")
	assert.Contains(t, raw, "RRULE:FREQ=DAILY")
}

func TestStore_AllDaySeriesEndsOnADate(t *testing.T) {
	s, client, _ := newTestStore(t, testConfig)
	ctx := context.Background()

	until := time.Date(2026, 4, 1, 23, 59, 59, 0, time.UTC)
	ev := s.NewEvent()
	ev.SetTitle("Bin day")
	ev.SetStartDate(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	ev.SetEndDate(time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	ev.SetAllDay(true)
	ev.SetCalendar(defaultCalendar(t, s))
	ev.AddRecurrenceRule(calendar.RecurrenceRule{Frequency: calendar.FrequencyWeekly, Interval: 1, End: until})
	require.NoError(t, s.SaveEvent(ctx, ev, calendar.SpanFutureEvents))

	raw := client.raw(client.paths()[0])
	assert.Contains(t, raw, "DTSTART;VALUE=DATE:20260306")
	assert.Contains(t, raw, "UNTIL=20260401")
	assert.NotContains(t, raw, "UNTIL=20260401T")

	found, err := s.EventWithIdentifier(ctx, ev.Identifier())
	require.NoError(t, err)
	require.NotNil(t, found)
	rules := found.RecurrenceRules()
	require.Len(t, rules, 1)
	assert.Equal(t, until, rules[0].End)

	events, err := s.EventsMatching(ctx, calendar.EventPredicate{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestStore_DecodesEnds(t *testing.T) {
	tests := []struct {
		name    string
		props   []string
		wantEnd time.Time
	}{
		{
			name:    "duration",
			props:   []string{"DTSTART:20260303T100000Z", "DURATION:P1DT2H"},
			wantEnd: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		},
		{
			name:    "date without end",
			props:   []string{"DTSTART;VALUE=DATE:20260303"},
			wantEnd: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "date-time without end",
			props:   []string{"DTSTART:20260303T100000Z"},
			wantEnd: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, client, _ := newTestStore(t, testConfig)

			lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN", "BEGIN:VEVENT", "UID:ends-1", "DTSTAMP:20260101T000000Z", "SUMMARY:Ends"}
			lines = append(lines, tt.props...)
			lines = append(lines, "END:VEVENT", "END:VCALENDAR")
			importObject(client, "/1234/calendars/home/ends.ics", lines...)

			found, err := s.EventWithIdentifier(context.Background(), "ends-1")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.True(t, tt.wantEnd.Equal(found.EndDate()), "got %s", found.EndDate())
		})
	}
}

func TestPartialUpdates(t *testing.T) {
	calendartest.TestPartialUpdates(t, func(t *testing.T) calendar.NativeStore {
		s, _, ledger := newTestStore(t, testConfig)
		ledger.grants[s.Account()] = calendar.StatusFullAccess
		return s
	})
}
