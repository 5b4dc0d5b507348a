package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/keyforge/pkg/metrics"
)

// TestHealthEndpoints tests method filtering and routing
func TestHealthEndpoints(t *testing.T) {
	handler := NewHealthServer().GetHandler()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{
			name:           "live GET succeeds",
			method:         http.MethodGet,
			path:           "/live",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "live POST fails",
			method:         http.MethodPost,
			path:           "/live",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "health DELETE fails",
			method:         http.MethodDelete,
			path:           "/health",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "ready PUT fails",
			method:         http.MethodPut,
			path:           "/ready",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "metrics GET succeeds",
			method:         http.MethodGet,
			path:           "/metrics",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

// TestReadyFollowsSession tests that /ready reflects the device, session and worker state
func TestReadyFollowsSession(t *testing.T) {
	handler := NewHealthServer().GetHandler()

	metrics.SetDevice("cpu-4")
	metrics.SetSession(false, "connection refused")
	metrics.SetWorkerState("disconnected", false)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body metrics.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "connection refused", body.Session)

	metrics.SetSession(true, "connected")
	metrics.SetWorkerState("requesting_job", true)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestStartShutdown tests serving on an ephemeral port
func TestStartShutdown(t *testing.T) {
	hs := NewHealthServer()
	addr, errCh, err := hs.Start("127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "keyforge_candidates_evaluated_total")

	require.NoError(t, hs.Shutdown(context.Background()))
	for err := range errCh {
		t.Errorf("unexpected serve error: %v", err)
	}
}
