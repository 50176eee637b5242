// Package dav implements calendar.NativeStore on top of a CalDAV server,
// iCloud by default.
//
// Access is negotiated the way a desktop calendar store does it: the first
// access request asks the user (on a terminal), verifies the credentials
// against the server and records the decision in a consent ledger. Later runs
// read the decision from the ledger without asking again.
package dav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/native"
	"github.com/teemow/calbridge/internal/native/consent"
	"github.com/teemow/calbridge/internal/native/dispatch"
	"github.com/teemow/calbridge/internal/native/recur"
)

const (
	// DefaultiCloudURL is Apple's CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"

	defaultTimeout = 30 * time.Second
	productID      = "-//calbridge//CalDAV//EN"
)

// ErrMissingCredentials is reported when no username or password is configured
var ErrMissingCredentials = errors.New("caldav username and password are not configured")

// Config selects the CalDAV account
type Config struct {
	Endpoint        string
	Username        string
	Password        string
	DefaultCalendar string
	Timeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultiCloudURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

func (c Config) configured() bool {
	return c.Username != "" && c.Password != ""
}

// davClient is the subset of *caldav.Client the store uses
type davClient interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindCalendarHomeSet(ctx context.Context, principal string) (string, error)
	FindCalendars(ctx context.Context, calendarHomeSet string) ([]caldav.Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
	RemoveAll(ctx context.Context, name string) error
}

// ConsentLedger persists access decisions per account
type ConsentLedger interface {
	Status(ctx context.Context, account string) (calendar.AuthorizationStatus, error)
	Record(ctx context.Context, account string, status calendar.AuthorizationStatus) error
}

// Store is a CalDAV backed calendar.NativeStore
type Store struct {
	cfg      Config
	client   davClient
	ledger   ConsentLedger
	prompter consent.Prompter
	queue    *dispatch.Queue
	logger   logging.Logger
	loc      *time.Location
	now      func() time.Time

	mu      sync.Mutex
	homeSet string
}

// Option configures a Store
type Option func(*Store)

// WithPrompter replaces the terminal prompter
func WithPrompter(p consent.Prompter) Option {
	return func(s *Store) {
		s.prompter = p
	}
}

// WithLogger sets the store's logger
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithLocation sets the zone for all-day dates and floating times
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// New connects a store to the CalDAV server in cfg. Decisions are kept in
// ledger.
func New(cfg Config, ledger ConsentLedger, opts ...Option) (*Store, error) {
	cfg = cfg.withDefaults()

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: cfg.Username,
			password: cfg.Password,
		},
		Timeout: cfg.Timeout,
	}
	client, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}
	return newStore(cfg, client, ledger, opts...), nil
}

func newStore(cfg Config, client davClient, ledger ConsentLedger, opts ...Option) *Store {
	s := &Store{
		cfg:      cfg.withDefaults(),
		client:   client,
		ledger:   ledger,
		prompter: consent.NewTerminalPrompter(),
		queue:    dispatch.New(),
		logger:   logging.NewSlogAdapter(nil),
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// Account identifies the configured account in the consent ledger
func (s *Store) Account() string {
	return s.cfg.Username + "@" + strings.TrimSuffix(s.cfg.Endpoint, "/")
}

func (s *Store) AuthorizationStatus() calendar.AuthorizationStatus {
	if !s.cfg.configured() {
		return calendar.StatusRestricted
	}
	status, err := s.ledger.Status(context.Background(), s.Account())
	if err != nil {
		s.logger.Warn("failed to read consent ledger", logging.Err(err))
		return calendar.StatusNotDetermined
	}
	return status
}

// RequestAccess asks the user, verifies the credentials and records the
// decision, all off the calling goroutine. The completion is posted to the
// dispatch queue.
func (s *Store) RequestAccess(completion func(granted bool, err error)) {
	go func() {
		granted, err := s.negotiate()
		s.queue.Post(func() {
			completion(granted, err)
		})
	}()
}

func (s *Store) negotiate() (bool, error) {
	if !s.cfg.configured() {
		return false, ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	// a recorded denial sticks until the ledger is reset
	status, err := s.ledger.Status(ctx, s.Account())
	if err != nil {
		return false, err
	}
	if status == calendar.StatusDenied {
		return false, nil
	}

	ok, err := s.prompter.Confirm(fmt.Sprintf("Allow calbridge to read and change the calendars of %s?", s.cfg.Username))
	if err != nil {
		return false, err
	}

	if !ok {
		if err := s.ledger.Record(ctx, s.Account(), calendar.StatusDenied); err != nil {
			return false, err
		}
		return false, nil
	}

	if _, err := s.client.FindCurrentUserPrincipal(ctx); err != nil {
		return false, fmt.Errorf("failed to verify CalDAV credentials: %w", err)
	}
	if err := s.ledger.Record(ctx, s.Account(), calendar.StatusFullAccess); err != nil {
		return false, err
	}
	s.logger.Info("calendar access granted", logging.UserHash(s.cfg.Username))
	return true, nil
}

func (s *Store) RunDispatch(d time.Duration) {
	s.queue.Run(d)
}

func (s *Store) AuthorizationGuidance() string {
	return "Run `calbridge authorize` in a terminal to grant access (add --reset to revisit an earlier denial). " +
		"For iCloud, create an app-specific password at appleid.apple.com under Sign-In and Security > App-Specific Passwords " +
		"and set it as caldav.password; on macOS also allow the terminal under System Settings > Privacy & Security > Calendars"
}

func (s *Store) calendarHomeSet(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.homeSet != "" {
		return s.homeSet, nil
	}

	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := s.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	s.homeSet = homeSet
	return homeSet, nil
}

func (s *Store) calendars(ctx context.Context) ([]*Calendar, error) {
	homeSet, err := s.calendarHomeSet(ctx)
	if err != nil {
		return nil, err
	}
	found, err := s.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	out := make([]*Calendar, 0, len(found))
	for _, c := range found {
		if !supportsEvents(c) {
			continue
		}
		title := c.Name
		if title == "" {
			title = path.Base(strings.TrimSuffix(c.Path, "/"))
		}
		out = append(out, &Calendar{path: c.Path, title: title})
	}
	return out, nil
}

func supportsEvents(c caldav.Calendar) bool {
	if len(c.SupportedComponentSet) == 0 {
		return true
	}
	for _, comp := range c.SupportedComponentSet {
		if comp == ical.CompEvent {
			return true
		}
	}
	return false
}

func (s *Store) Calendars(ctx context.Context) ([]calendar.NativeCalendar, error) {
	cals, err := s.calendars(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.NativeCalendar, 0, len(cals))
	for _, c := range cals {
		out = append(out, c)
	}
	return out, nil
}

// DefaultCalendarForNewEvents returns the configured default calendar, or the
// first calendar when none is configured.
func (s *Store) DefaultCalendarForNewEvents(ctx context.Context) (calendar.NativeCalendar, error) {
	cals, err := s.calendars(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cals {
		if s.cfg.DefaultCalendar == "" || c.title == s.cfg.DefaultCalendar {
			return c, nil
		}
	}
	return nil, nil
}

func (s *Store) searchCalendars(ctx context.Context, filter []calendar.NativeCalendar) ([]*Calendar, error) {
	if filter == nil {
		return s.calendars(ctx)
	}
	out := make([]*Calendar, 0, len(filter))
	for _, f := range filter {
		if c, ok := f.(*Calendar); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func eventQuery(start, end time.Time, props ...caldav.PropFilter) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  ical.CompEvent,
					Start: start,
					End:   end,
					Props: props,
				},
			},
		},
	}
}

func (s *Store) EventsMatching(ctx context.Context, p calendar.EventPredicate) ([]calendar.NativeEvent, error) {
	cals, err := s.searchCalendars(ctx, p.Calendars)
	if err != nil {
		return nil, err
	}

	var out []calendar.NativeEvent
	for _, cal := range cals {
		objects, err := s.client.QueryCalendar(ctx, cal.path, eventQuery(p.Start.UTC(), p.End.UTC()))
		if err != nil {
			return nil, fmt.Errorf("failed to query calendar %s: %w", cal.title, err)
		}

		for _, obj := range objects {
			ev, err := decodeEvent(obj.Path, obj.Data, cal, s.loc)
			if err != nil {
				s.logger.Warn("skipping calendar object", "path", obj.Path, logging.Err(err))
				continue
			}

			if len(ev.rules) == 0 {
				if native.Overlaps(ev.start, ev.end, p.Start, p.End) {
					out = append(out, ev)
				}
				continue
			}

			occurrences, err := recur.Between(ev.rules[0], ev.start, ev.end, p.Start, p.End)
			if err != nil {
				s.logger.Warn("skipping series", "path", obj.Path, logging.Err(err))
				continue
			}
			for _, occ := range occurrences {
				if !native.Overlaps(occ.Start, occ.End, p.Start, p.End) {
					continue
				}
				c := ev.clone()
				c.start, c.end = occ.Start, occ.End
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *Store) EventWithIdentifier(ctx context.Context, id string) (calendar.NativeEvent, error) {
	cals, err := s.calendars(ctx)
	if err != nil {
		return nil, err
	}

	uidFilter := caldav.PropFilter{
		Name:      ical.PropUID,
		TextMatch: &caldav.TextMatch{Text: id},
	}
	for _, cal := range cals {
		objects, err := s.client.QueryCalendar(ctx, cal.path, eventQuery(time.Time{}, time.Time{}, uidFilter))
		if err != nil {
			return nil, fmt.Errorf("failed to query calendar %s: %w", cal.title, err)
		}
		for _, obj := range objects {
			ev, err := decodeEvent(obj.Path, obj.Data, cal, s.loc)
			if err != nil {
				continue
			}
			// text-match is a substring match on the server
			if ev.uid == id {
				return ev, nil
			}
		}
	}
	return nil, nil
}

func (s *Store) NewEvent() calendar.NativeEvent {
	return &Event{}
}

// SaveEvent writes the whole resource. A master event always carries its
// series, so both spans rewrite every occurrence.
func (s *Store) SaveEvent(ctx context.Context, nev calendar.NativeEvent, span calendar.Span) error {
	ev, ok := nev.(*Event)
	if !ok {
		return errors.New("event does not belong to the CalDAV store")
	}
	if ev.cal == nil {
		return errors.New("no calendar has been set")
	}
	if ev.end.Before(ev.start) {
		return errors.New("the start date must be before the end date")
	}
	if ev.allDay {
		ev.start, ev.end = native.SnapToDays(ev.start, ev.end, s.loc)
	}
	if ev.uid == "" {
		ev.uid = uuid.NewString()
	}

	target := ev.objectPath
	moved := false
	if target == "" || path.Dir(target) != path.Clean(ev.cal.path) {
		moved = target != ""
		target = path.Join(ev.cal.path, ev.uid+".ics")
	}

	data, err := encodeEvent(ev, s.loc, s.now())
	if err != nil {
		return err
	}
	if _, err := s.client.PutCalendarObject(ctx, target, data); err != nil {
		return fmt.Errorf("failed to put calendar object: %w", err)
	}
	if moved {
		if err := s.client.RemoveAll(ctx, ev.objectPath); err != nil {
			return fmt.Errorf("event was copied to %s but the old copy could not be removed: %w", ev.cal.title, err)
		}
	}

	ev.objectPath = target
	ev.data = data
	ev.alarmsChanged, ev.rulesChanged = false, false
	s.logger.Debug("saved calendar object", "path", target, "span", span.String())
	return nil
}

func (s *Store) RemoveEvent(ctx context.Context, nev calendar.NativeEvent, span calendar.Span) error {
	ev, ok := nev.(*Event)
	if !ok {
		return errors.New("event does not belong to the CalDAV store")
	}
	if ev.objectPath == "" {
		return fmt.Errorf("event %s has never been saved", ev.uid)
	}
	if err := s.client.RemoveAll(ctx, ev.objectPath); err != nil {
		return fmt.Errorf("failed to remove calendar object: %w", err)
	}
	s.logger.Debug("removed calendar object", "path", ev.objectPath, "span", span.String())
	return nil
}
