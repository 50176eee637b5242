package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calbridge/internal/instrumentation"
)

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name        string
		config      MetricsServerConfig
		wantAddr    string
		errContains string
	}{
		{
			name:     "valid config",
			config:   MetricsServerConfig{Addr: ":9091", Enabled: true, InstrumentationProvider: createTestProvider(t)},
			wantAddr: ":9091",
		},
		{
			name:     "default addr",
			config:   MetricsServerConfig{Enabled: true, InstrumentationProvider: createTestProvider(t)},
			wantAddr: DefaultMetricsAddr,
		},
		{
			name:        "nil provider",
			config:      MetricsServerConfig{Addr: ":9090", Enabled: true},
			errContains: "instrumentation provider is required",
		},
		{
			name:        "disabled provider",
			config:      MetricsServerConfig{Addr: ":9090", Enabled: true, InstrumentationProvider: createDisabledProvider(t)},
			errContains: "instrumentation provider is not enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewMetricsServer(tt.config)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, server.Addr())
		})
	}
}

func TestMetricsServer_ServesMetricsAndProbes(t *testing.T) {
	provider := createTestProvider(t)
	provider.Metrics().RecordAuthorization(context.Background(), "memory", instrumentation.AuthGranted)

	server, err := NewMetricsServer(MetricsServerConfig{
		Addr:                    "127.0.0.1:0",
		Enabled:                 true,
		InstrumentationProvider: provider,
		Health:                  NewHealthChecker(newTestServerContext(t)),
	})
	require.NoError(t, err)
	require.NoError(t, server.Listen())

	served := make(chan error, 1)
	go func() { served <- server.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, server.Shutdown(ctx))
		assert.ErrorIs(t, <-served, http.ErrServerClosed)
	})

	base := "http://" + server.Addr()

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "calendar_authorization_total")

	resp, err = http.Get(base + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsServer_ShutdownWithoutStart(t *testing.T) {
	server, err := NewMetricsServer(MetricsServerConfig{Enabled: true, InstrumentationProvider: createTestProvider(t)})
	require.NoError(t, err)

	assert.NoError(t, server.Shutdown(context.Background()))
	assert.Error(t, server.Serve(), "serve before listen")
}

func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:     "calbridge-test",
		ServiceVersion:  "test",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func createDisabledProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	require.NoError(t, err)
	return provider
}
