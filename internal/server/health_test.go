package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	h.SetReady(false)

	code, body := check(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, body["status"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T) *HealthChecker
		wantCode   int
		wantChecks map[string]any
	}{
		{
			name:     "ready with bridge",
			setup:    func(t *testing.T) *HealthChecker { return NewHealthChecker(newTestServerContext(t)) },
			wantCode: http.StatusOK,
			wantChecks: map[string]any{
				"ready": healthStatusOK, "shutdown": healthStatusOK, "calendar": healthStatusOK,
			},
		},
		{
			name:     "no bridge",
			setup:    func(t *testing.T) *HealthChecker { return NewHealthChecker(nil) },
			wantCode: http.StatusServiceUnavailable,
			wantChecks: map[string]any{
				"ready": healthStatusOK, "shutdown": healthStatusOK, "calendar": healthStatusNoBridge,
			},
		},
		{
			name: "not ready",
			setup: func(t *testing.T) *HealthChecker {
				h := NewHealthChecker(newTestServerContext(t))
				h.SetReady(false)
				return h
			},
			wantCode: http.StatusServiceUnavailable,
			wantChecks: map[string]any{
				"ready": healthStatusNotReady, "shutdown": healthStatusOK, "calendar": healthStatusOK,
			},
		},
		{
			name: "shutting down",
			setup: func(t *testing.T) *HealthChecker {
				sc := newTestServerContext(t)
				require.NoError(t, sc.Shutdown())
				return NewHealthChecker(sc)
			},
			wantCode: http.StatusServiceUnavailable,
			wantChecks: map[string]any{
				"ready": healthStatusOK, "shutdown": healthStatusShuttingDown, "calendar": healthStatusOK,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := check(t, tt.setup(t).ReadinessHandler())
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantChecks, body["checks"])
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	sc := newTestServerContext(t)
	h := NewHealthChecker(sc)

	code, body := check(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "memory", body["store"])
	assert.NotEmpty(t, body["uptime"])

	require.NoError(t, sc.Shutdown())
	code, body = check(t, h.DetailedHealthHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, healthStatusShuttingDown, body["status"])
}

func TestHealthChecker_RegisterHealthEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthChecker(newTestServerContext(t)).RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequestWithContext(context.Background(), http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
