package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/config"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/native"
	"github.com/teemow/calbridge/internal/native/consent"
	"github.com/teemow/calbridge/internal/native/dav"
	"github.com/teemow/calbridge/internal/native/memory"
)

// environment is the resolved configuration of one invocation
type environment struct {
	cfg    *config.Config
	path   string
	loc    *time.Location
	logger *slog.Logger
}

// account names the CalDAV account the way the store reports it; empty for
// the memory store
func (e *environment) account() string {
	if e.cfg.Store != config.StoreCalDAV {
		return ""
	}
	return e.cfg.CalDAV.Username + "@" + strings.TrimSuffix(e.cfg.CalDAV.Endpoint, "/")
}

// configPath resolves --config, then CALBRIDGE_CONFIG, then the default path
func configPath() string {
	if globals.configPath != "" {
		return globals.configPath
	}
	if p := os.Getenv(config.EnvConfig); p != "" {
		return p
	}
	return config.DefaultPath()
}

// loadEnvironment reads the config file, applies the environment and the
// global flags and validates the result
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if globals.store != "" {
		cfg.Store = globals.store
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if globals.debug {
		level = slog.LevelDebug
	}

	return &environment{
		cfg:    cfg,
		path:   path,
		loc:    loc,
		logger: logging.NewLogger(cmd.ErrOrStderr(), level, cfg.Log.Format),
	}, nil
}

// bridgeOptions are the collaborators a session is opened with
type bridgeOptions struct {
	metrics  *instrumentation.Metrics
	prompter consent.Prompter
}

// session owns the calendar client of one process and everything it holds open
type session struct {
	client  *calendar.Client
	store   string
	account string
	ledger  *consent.Ledger
	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (env *environment) davConfig() dav.Config {
	return dav.Config{
		Endpoint:        env.cfg.CalDAV.Endpoint,
		Username:        env.cfg.CalDAV.Username,
		Password:        env.cfg.CalDAV.Password,
		DefaultCalendar: env.cfg.CalDAV.DefaultCalendar,
	}
}

// openStore builds the configured native store without authorizing it
func openStore(env *environment, opts bridgeOptions) (calendar.NativeStore, *session, error) {
	s := &session{store: env.cfg.Store}

	switch env.cfg.Store {
	case config.StoreMemory:
		return memory.New(memory.WithLocation(env.loc)), s, nil

	case config.StoreCalDAV:
		ledger, err := consent.Open(env.cfg.Consent.Database)
		if err != nil {
			return nil, nil, err
		}
		s.ledger = ledger
		s.closers = append(s.closers, ledger.Close)

		storeOpts := []dav.Option{
			dav.WithLogger(logging.NewSlogAdapter(logging.WithStore(env.logger, config.StoreCalDAV))),
			dav.WithLocation(env.loc),
		}
		if opts.prompter != nil {
			storeOpts = append(storeOpts, dav.WithPrompter(opts.prompter))
		}
		store, err := dav.New(env.davConfig(), ledger, storeOpts...)
		if err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		s.account = store.Account()
		return store, s, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", env.cfg.Store)
	}
}

// openSession opens the store and runs the authorization handshake. No
// session is returned when access is denied or the handshake times out.
func openSession(ctx context.Context, env *environment, opts bridgeOptions) (*session, error) {
	store, s, err := openStore(env, opts)
	if err != nil {
		return nil, err
	}

	client, err := calendar.NewClient(native.Instrument(store, s.store, opts.metrics),
		calendar.WithLogger(env.logger),
		calendar.WithAuthorizationTimeout(env.cfg.Authorization.Timeout),
	)
	if err != nil {
		if calendar.KindOf(err) == calendar.KindAuthorizationTimeout {
			opts.metrics.RecordAuthorization(ctx, s.store, instrumentation.AuthTimeout)
		}
		_ = s.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

// withSession loads the environment, opens a session for the duration of fn
// and closes it afterwards
func withSession(cmd *cobra.Command, fn func(env *environment, s *session) error) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), env, bridgeOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			env.logger.Warn("failed to close calendar store", logging.Err(err))
		}
	}()
	return fn(env, s)
}
