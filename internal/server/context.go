package server

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/calbridge/internal/access"
	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/instrumentation"
)

// ServerContext holds what every MCP tool handler shares: the calendar
// bridge, the store identity and the telemetry sinks.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	bridge  access.Bridge
	store   string
	account string
	loc     *time.Location
	search  access.SearchOptions

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext
type Option func(*ServerContext)

// WithStore names the backing store and the account it runs as
func WithStore(name, account string) Option {
	return func(sc *ServerContext) {
		sc.store = name
		sc.account = account
	}
}

// WithLocation sets the zone tool arguments are parsed and rendered in
func WithLocation(loc *time.Location) Option {
	return func(sc *ServerContext) {
		if loc != nil {
			sc.loc = loc
		}
	}
}

// WithSearchDefaults sets the search window used when a tool call omits it
func WithSearchDefaults(daysBack, daysForward int) Option {
	return func(sc *ServerContext) {
		sc.search.DaysBack = calendar.Some(daysBack)
		sc.search.DaysForward = calendar.Some(daysForward)
	}
}

func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) {
		sc.auditLogger = al
	}
}

// NewServerContext wraps an authorized bridge. The bridge is shared by all
// tool calls; calendar.Client serializes them.
func NewServerContext(ctx context.Context, bridge access.Bridge, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		bridge: bridge,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context is cancelled on Shutdown
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

func (sc *ServerContext) Bridge() access.Bridge {
	return sc.bridge
}

// StoreName is the backend label used in metrics and audit records
func (sc *ServerContext) StoreName() string {
	return sc.store
}

// Account is the store account, e.g. the Apple ID of a CalDAV store
func (sc *ServerContext) Account() string {
	return sc.account
}

func (sc *ServerContext) Location() *time.Location {
	return sc.loc
}

// SearchDefaults returns the configured search window. Tool arguments
// override individual fields.
func (sc *ServerContext) SearchDefaults() access.SearchOptions {
	return sc.search
}

// Metrics may return nil, which records nothing
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger may return nil, which logs nothing
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the context. Calling it twice is a no-op.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
