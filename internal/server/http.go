package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/instrumentation"
)

// HTTP transports
const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// HTTPServer exposes the MCP server over HTTP together with the health
// endpoints. Requests to the MCP endpoints are counted in http_requests_total.
type HTTPServer struct {
	mcpServer *mcpserver.MCPServer
	transport string
	health    *HealthChecker
	metrics   *instrumentation.Metrics

	mu         sync.Mutex
	httpServer *http.Server
}

// NewHTTPServer wraps mcpServer for the given transport
func NewHTTPServer(mcpServer *mcpserver.MCPServer, transport string, sc *ServerContext) (*HTTPServer, error) {
	switch transport {
	case TransportStreamableHTTP, TransportSSE:
	default:
		return nil, fmt.Errorf("unsupported HTTP transport: %s", transport)
	}

	s := &HTTPServer{
		mcpServer: mcpServer,
		transport: transport,
		health:    NewHealthChecker(sc),
	}
	if sc != nil {
		s.metrics = sc.Metrics()
	}
	return s, nil
}

// Health returns the checker behind /readyz, so callers can flip readiness
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler builds the request router
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	switch s.transport {
	case TransportSSE:
		sse := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
		)
		mux.Handle("/sse", recordRequests(s.metrics, sse))
		mux.Handle("/message", recordRequests(s.metrics, sse))
	default:
		streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
		)
		mux.Handle("/mcp", recordRequests(s.metrics, streamable))
	}

	s.health.RegisterHealthEndpoints(mux)
	return mux
}

// Start blocks until Shutdown
func (s *HTTPServer) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("starting MCP HTTP server", "addr", addr, "transport", s.transport)
	return srv.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response status for request metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func recordRequests(metrics *instrumentation.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
