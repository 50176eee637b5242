package calendar

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/calbridge/internal/logging"
)

const (
	// DefaultPollInterval is the time slice given to the store's dispatch
	// queue per handshake iteration.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultAuthorizationTimeout bounds how long the handshake waits for the
	// host to answer the access request.
	DefaultAuthorizationTimeout = 2 * time.Minute
)

// AuthorizeOptions tunes the authorization handshake
type AuthorizeOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

type accessResult struct {
	granted bool
	err     error
}

// Authorize makes sure store has full event access. When the store is not
// authorized yet it issues an access request and services the store's
// dispatch queue in PollInterval slices until the completion arrives or
// Timeout elapses. Calling it again once access is granted is a cheap status
// check.
func Authorize(store NativeStore, opts AuthorizeOptions) error {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAuthorizationTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithOperation(logger, "calendar.authorize")

	status := store.AuthorizationStatus()
	if status.Granted() {
		logger.Debug("calendar access already granted", slog.String("authorization_status", status.String()))
		return nil
	}

	logger.Info("requesting calendar access", slog.String("authorization_status", status.String()))

	done := make(chan accessResult, 1)
	var once sync.Once
	store.RequestAccess(func(granted bool, err error) {
		once.Do(func() {
			done <- accessResult{granted: granted, err: err}
		})
	})

	deadline := time.Now().Add(opts.Timeout)
	for {
		select {
		case res := <-done:
			if !res.granted {
				logger.Warn("calendar access denied", logging.Err(res.err))
				return NewAuthorizationDeniedError(store.AuthorizationGuidance(), res.err)
			}
			logger.Info("calendar access granted")
			return nil
		default:
		}

		if !time.Now().Before(deadline) {
			logger.Error("calendar access request timed out", slog.Duration("timeout", opts.Timeout))
			return NewAuthorizationTimeoutError(store.AuthorizationGuidance())
		}
		store.RunDispatch(opts.PollInterval)
	}
}
