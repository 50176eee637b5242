package dav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/teemow/calbridge/internal/calendar"
)

// fakeDAV keeps calendar objects in their encoded form so every read goes
// through the iCalendar decoder like a real server round trip.
type fakeDAV struct {
	mu           sync.Mutex
	principalErr error
	calendars    []caldav.Calendar
	objects      map[string][]byte
	principals   int
}

func newFakeDAV() *fakeDAV {
	return &fakeDAV{
		calendars: []caldav.Calendar{
			{Path: "/1234/calendars/home/", Name: "Home"},
			{Path: "/1234/calendars/work/", Name: "Work"},
			{Path: "/1234/calendars/tasks/", Name: "Reminders", SupportedComponentSet: []string{"VTODO"}},
		},
		objects: make(map[string][]byte),
	}
}

func (f *fakeDAV) FindCurrentUserPrincipal(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principals++
	if f.principalErr != nil {
		return "", f.principalErr
	}
	return "/1234/principal/", nil
}

func (f *fakeDAV) FindCalendarHomeSet(ctx context.Context, principal string) (string, error) {
	return "/1234/calendars/", nil
}

func (f *fakeDAV) FindCalendars(ctx context.Context, homeSet string) ([]caldav.Calendar, error) {
	return f.calendars, nil
}

func (f *fakeDAV) QueryCalendar(ctx context.Context, cal string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var uid string
	for _, comp := range query.CompFilter.Comps {
		for _, prop := range comp.Props {
			if prop.Name == ical.PropUID && prop.TextMatch != nil {
				uid = prop.TextMatch.Text
			}
		}
	}

	paths := make([]string, 0, len(f.objects))
	for p := range f.objects {
		if strings.HasPrefix(p, cal) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var out []caldav.CalendarObject
	for _, p := range paths {
		data, err := ical.NewDecoder(bytes.NewReader(f.objects[p])).Decode()
		if err != nil {
			return nil, err
		}
		if uid != "" {
			master := masterEvent(data)
			if master == nil || !strings.Contains(textProp(master, ical.PropUID), uid) {
				continue
			}
		}
		out = append(out, caldav.CalendarObject{Path: p, Data: data})
	}
	return out, nil
}

func (f *fakeDAV) PutCalendarObject(ctx context.Context, p string, cal *ical.Calendar) (*caldav.CalendarObject, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[p] = buf.Bytes()
	return &caldav.CalendarObject{Path: p}, nil
}

func (f *fakeDAV) RemoveAll(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[p]; !ok {
		return fmt.Errorf("404 Not Found: %s", p)
	}
	delete(f.objects, p)
	return nil
}

func (f *fakeDAV) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for p := range f.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *fakeDAV) raw(p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.objects[p])
}

// fakeLedger is an in-process ConsentLedger
type fakeLedger struct {
	mu      sync.Mutex
	grants  map[string]calendar.AuthorizationStatus
	records int
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{grants: make(map[string]calendar.AuthorizationStatus)}
}

func (l *fakeLedger) Status(ctx context.Context, account string) (calendar.AuthorizationStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return calendar.StatusNotDetermined, l.err
	}
	return l.grants[account], nil
}

func (l *fakeLedger) Record(ctx context.Context, account string, status calendar.AuthorizationStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records++
	l.grants[account] = status
	return nil
}

// countingPrompter counts questions
type countingPrompter struct {
	mu     sync.Mutex
	answer bool
	err    error
	asked  int
}

func (p *countingPrompter) Confirm(string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked++
	return p.answer, p.err
}

func (p *countingPrompter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asked
}

var errUnauthorized = errors.New("401 Unauthorized")
