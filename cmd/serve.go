package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/resources"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/calendar_tools"
)

const transportStdio = "stdio"

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

type serveOptions struct {
	transport   string
	httpAddr    string
	yolo        bool
	authTimeout time.Duration
	metrics     MetricsConfig
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to give AI assistants access
to your calendars.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp
  - sse: Server-Sent Events on /sse and /message

Safety Mode:
  By default, the server operates in read-only mode, providing only listing and
  search tools. Use --yolo to enable creating, changing and deleting events.

Authorization:
  The server asks for calendar access before it accepts requests and exits when
  access is denied or not granted within --auth-timeout. MCP hosts start the
  server without a terminal, so run "calbridge authorize" once beforehand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadMetricsEnvVars(cmd, &opts.metrics, os.LookupEnv)
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "Transport type: stdio, streamable-http or sse")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http and sse transports)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable write operations (create, update and delete events). Default is read-only mode.")
	cmd.Flags().DurationVar(&opts.authTimeout, "auth-timeout", 0, "How long to wait for calendar access to be granted (default: from config, 2m)")

	// Metrics server flags
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadMetricsEnvVars applies METRICS_ENABLED and METRICS_ADDR. Environment
// variables only override flag values when the flag was not explicitly set.
func loadMetricsEnvVars(cmd *cobra.Command, config *MetricsConfig, lookup func(string) (string, bool)) {
	if !cmd.Flags().Changed("metrics-enabled") {
		if v, ok := lookup("METRICS_ENABLED"); ok && v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				config.Enabled = enabled
			}
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr, ok := lookup("METRICS_ADDR"); ok && addr != "" {
			config.Addr = addr
		}
	}
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	switch opts.transport {
	case transportStdio, server.TransportStreamableHTTP, server.TransportSSE:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http, sse)", opts.transport)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	if opts.authTimeout > 0 {
		env.cfg.Authorization.Timeout = opts.authTimeout
	}
	logger := env.logger

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Store = env.cfg.Store
	instrConfig.Account = env.account()
	if opts.transport == transportStdio {
		// stdout is the MCP channel
		instrConfig.StdoutWriter = cmd.ErrOrStderr()
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	// no request is served before the handshake finished
	session, err := openSession(shutdownCtx, env, bridgeOptions{metrics: provider.Metrics()})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close calendar store", logging.Err(err))
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx, session.client,
		server.WithStore(session.store, session.account),
		server.WithLocation(env.loc),
		server.WithSearchDefaults(env.cfg.Search.DaysBack, env.cfg.Search.DaysForward),
		server.WithMetrics(provider.Metrics()),
		server.WithAuditLogger(instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)),
	)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv := newMCPServer()

	// readOnly is the inverse of yolo
	readOnly := !opts.yolo
	if readOnly {
		logger.Info("starting server in read-only mode (use --yolo to enable write operations)")
	} else {
		logger.Info("starting server with write operations enabled (--yolo flag is set)")
	}

	if err := registerAll(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	if opts.transport == transportStdio {
		return runStdioServer(mcpSrv)
	}
	return runHTTPServer(shutdownCtx, mcpSrv, serverContext, opts, provider, logger)
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("calbridge", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
}

// registerAll registers all MCP tools and resources
func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	registrations := []struct {
		name     string
		register func() error
	}{
		{
			name: "Calendar tools",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Calendar resources",
			register: func() error {
				return resources.RegisterCalendarResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}
	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, opts serveOptions, provider *instrumentation.Provider, logger *slog.Logger) error {
	httpSrv, err := server.NewHTTPServer(mcpSrv, opts.transport, sc)
	if err != nil {
		return err
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if opts.metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
			Health:                  httpSrv.Health(),
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := metricsServer.Listen(); err != nil {
			return fmt.Errorf("metrics server failed to start: %w", err)
		}
		go func() {
			if err := metricsServer.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpSrv.Start(opts.httpAddr)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server stopped with error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error during HTTP server shutdown", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during metrics server shutdown", logging.Err(err))
		}
	}
	return runErr
}
