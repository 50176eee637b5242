// Package calendartest holds conformance tests that run a NativeStore
// through calendar.Client.
package calendartest

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/native"
)

// NewStore returns an empty store that is already authorized, offers the
// calendars "Home" and "Work" and works in UTC.
type NewStore func(t *testing.T) calendar.NativeStore

// state is everything an update may or may not touch
type state struct {
	Event  calendar.Event
	Alarms []calendar.Alarm
	Rules  []calendar.RecurrenceRule
}

type fieldUpdate struct {
	name string
	// field groups updates that write the same field; a combined request
	// carries at most one of them
	field  string
	apply  func(r *calendar.UpdateEventRequest)
	expect func(s *state)
}

var baseRule = calendar.RecurrenceRule{
	Frequency: calendar.FrequencyWeekly,
	Interval:  2,
	End:       time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
}

func baseRequest() calendar.CreateEventRequest {
	rule := baseRule
	return calendar.CreateEventRequest{
		Title:        "Planning",
		Start:        time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC),
		End:          time.Date(2026, 2, 12, 11, 0, 0, 0, time.UTC),
		CalendarName: "Work",
		Location:     "Room 1",
		Notes:        "agenda",
		URL:          "https://example.com/planning",
		AlarmMinutes: []int{5, 30},
		Recurrence:   &rule,
	}
}

// fieldUpdates covers every field of UpdateEventRequest. all_day stays last
// so that it snaps whatever start and end the earlier updates produced.
func fieldUpdates() []fieldUpdate {
	start := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	daily := calendar.RecurrenceRule{Frequency: calendar.FrequencyDaily, Interval: 1}

	return []fieldUpdate{
		{
			name: "title", field: "title",
			apply:  func(r *calendar.UpdateEventRequest) { r.Title = calendar.Some("Replanning") },
			expect: func(s *state) { s.Event.Title = "Replanning" },
		},
		{
			name: "start", field: "start",
			apply:  func(r *calendar.UpdateEventRequest) { r.Start = calendar.Some(start) },
			expect: func(s *state) { s.Event.Start = start },
		},
		{
			name: "end", field: "end",
			apply:  func(r *calendar.UpdateEventRequest) { r.End = calendar.Some(end) },
			expect: func(s *state) { s.Event.End = end },
		},
		{
			name: "calendar", field: "calendar",
			apply:  func(r *calendar.UpdateEventRequest) { r.CalendarName = calendar.Some("Home") },
			expect: func(s *state) { s.Event.CalendarName = "Home" },
		},
		{
			name: "location", field: "location",
			apply:  func(r *calendar.UpdateEventRequest) { r.Location = calendar.Some("Room 2") },
			expect: func(s *state) { s.Event.Location = "Room 2" },
		},
		{
			name: "location cleared", field: "location",
			apply:  func(r *calendar.UpdateEventRequest) { r.Location = calendar.Some("") },
			expect: func(s *state) { s.Event.Location = "" },
		},
		{
			name: "notes", field: "notes",
			apply:  func(r *calendar.UpdateEventRequest) { r.Notes = calendar.Some("new agenda") },
			expect: func(s *state) { s.Event.Notes = "new agenda" },
		},
		{
			name: "url", field: "url",
			apply:  func(r *calendar.UpdateEventRequest) { r.URL = calendar.Some("https://example.org/x") },
			expect: func(s *state) { s.Event.URL = "https://example.org/x" },
		},
		{
			name: "alarms", field: "alarms",
			apply:  func(r *calendar.UpdateEventRequest) { r.AlarmMinutes = calendar.Some([]int{15}) },
			expect: func(s *state) { s.Alarms = []calendar.Alarm{calendar.AlarmBefore(15)} },
		},
		{
			name: "alarms cleared", field: "alarms",
			apply:  func(r *calendar.UpdateEventRequest) { r.AlarmMinutes = calendar.Some([]int(nil)) },
			expect: func(s *state) { s.Alarms = nil },
		},
		{
			name: "recurrence", field: "recurrence",
			apply: func(r *calendar.UpdateEventRequest) {
				rule := daily
				r.Recurrence = calendar.Some(&rule)
			},
			expect: func(s *state) {
				s.Rules = []calendar.RecurrenceRule{daily}
				s.Event.IsRecurring = true
			},
		},
		{
			name: "recurrence cleared", field: "recurrence",
			apply: func(r *calendar.UpdateEventRequest) { r.Recurrence = calendar.Some[*calendar.RecurrenceRule](nil) },
			expect: func(s *state) {
				s.Rules = nil
				s.Event.IsRecurring = false
			},
		},
		{
			name: "all day", field: "all_day",
			apply: func(r *calendar.UpdateEventRequest) { r.AllDay = calendar.Some(true) },
			expect: func(s *state) {
				s.Event.AllDay = true
				s.Event.Start, s.Event.End = native.SnapToDays(s.Event.Start, s.Event.End, time.UTC)
			},
		},
	}
}

func snapshot(t *testing.T, store calendar.NativeStore, client *calendar.Client, id string) state {
	t.Helper()
	ctx := context.Background()

	ev, err := client.FindByID(ctx, id)
	require.NoError(t, err)
	nev, err := store.EventWithIdentifier(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, nev)

	s := state{Event: ev, Alarms: nev.Alarms(), Rules: nev.RecurrenceRules()}
	slices.SortFunc(s.Alarms, func(a, b calendar.Alarm) int {
		return cmp.Compare(a.RelativeOffset, b.RelativeOffset)
	})
	if len(s.Alarms) == 0 {
		s.Alarms = nil
	}
	if len(s.Rules) == 0 {
		s.Rules = nil
	}
	return s
}

func runUpdate(t *testing.T, newStore NewStore, updates []fieldUpdate) {
	t.Helper()
	ctx := context.Background()

	store := newStore(t)
	client, err := calendar.NewClient(store)
	require.NoError(t, err)

	created, err := client.CreateEvent(ctx, baseRequest())
	require.NoError(t, err)
	want := snapshot(t, store, client, created.ID)

	var req calendar.UpdateEventRequest
	for _, u := range updates {
		u.apply(&req)
		u.expect(&want)
	}

	_, err = client.UpdateEvent(ctx, created.ID, req)
	require.NoError(t, err)

	got := snapshot(t, store, client, created.ID)
	assert.Equal(t, want, got)
}

// TestPartialUpdates checks that an update changes exactly the fields it
// carries: every field on its own, then seeded random combinations.
func TestPartialUpdates(t *testing.T, newStore NewStore) {
	updates := fieldUpdates()

	t.Run("nothing", func(t *testing.T) {
		runUpdate(t, newStore, nil)
	})
	for _, u := range updates {
		t.Run(u.name, func(t *testing.T) {
			runUpdate(t, newStore, []fieldUpdate{u})
		})
	}

	rng := rand.New(rand.NewPCG(20260212, 1))
	for i := range 25 {
		var picked []fieldUpdate
		used := make(map[string]bool)
		for _, u := range updates {
			if used[u.field] || rng.IntN(2) == 0 {
				continue
			}
			used[u.field] = true
			picked = append(picked, u)
		}

		names := make([]string, 0, len(picked))
		for _, u := range picked {
			names = append(names, u.name)
		}
		t.Run("combined "+strings.Join(names, "+"), func(t *testing.T) {
			if len(picked) == 0 {
				t.Skipf("combination %d picked nothing", i)
			}
			runUpdate(t, newStore, picked)
		})
	}
}
