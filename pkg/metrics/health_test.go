package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthFollowsDevice(t *testing.T) {
	health = newWorkerHealth()

	s := GetHealth()
	assert.Equal(t, "unhealthy", s.Status)
	assert.Equal(t, "no compute device", s.Message)

	SetDevice("GeForce RTX 3080")
	s = GetHealth()
	assert.Equal(t, "healthy", s.Status)
	assert.Equal(t, "GeForce RTX 3080", s.Device)

	DeviceFailed("clEnqueueNDRangeKernel: -5")
	s = GetHealth()
	assert.Equal(t, "unhealthy", s.Status)
	assert.Equal(t, "clEnqueueNDRangeKernel: -5", s.DeviceError)
}

func TestReadinessNeedsServingSession(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		wantReady bool
		message   string
	}{
		{
			name:    "no device",
			setup:   func() {},
			message: "waiting for device",
		},
		{
			name: "device without session",
			setup: func() {
				SetDevice("cpu-4")
				SetWorkerState("connecting", false)
			},
			message: "waiting for session: not connected",
		},
		{
			name: "session still flushing",
			setup: func() {
				SetDevice("cpu-4")
				SetSession(true, "connected to 10.0.0.1:7001")
				SetWorkerState("flushing", false)
			},
			message: "worker is flushing",
		},
		{
			name: "executing",
			setup: func() {
				SetDevice("cpu-4")
				SetSession(true, "connected to 10.0.0.1:7001")
				SetWorkerState("executing", true)
			},
			wantReady: true,
		},
		{
			name: "device fault while executing",
			setup: func() {
				SetDevice("cpu-4")
				SetSession(true, "connected to 10.0.0.1:7001")
				SetWorkerState("executing", true)
				DeviceFailed("read scores: short read")
			},
			message: "waiting for device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health = newWorkerHealth()
			tt.setup()

			s := GetReadiness()
			if tt.wantReady {
				assert.Equal(t, "ready", s.Status)
				assert.Empty(t, s.Message)
				return
			}
			assert.Equal(t, "not_ready", s.Status)
			assert.Equal(t, tt.message, s.Message)
		})
	}
}

func TestSetPendingResults(t *testing.T) {
	health = newWorkerHealth()

	SetPendingResults(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(PendingResults))
	assert.Equal(t, 3, GetHealth().PendingResults)
}

func TestHealthHandlers(t *testing.T) {
	health = newWorkerHealth()
	SetVersion("1.2.0")
	SetDevice("cpu-4")
	SetSession(true, "connected")
	SetWorkerState("awaiting_job", true)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{name: "health", handler: HealthHandler(), wantCode: http.StatusOK, wantBody: "healthy"},
		{name: "ready", handler: ReadyHandler(), wantCode: http.StatusOK, wantBody: "ready"},
		{name: "live", handler: LivenessHandler(), wantCode: http.StatusOK, wantBody: "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/"+tt.name, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body["status"])
		})
	}

	SetWorkerState("disconnected", false)
	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "1.2.0", body.Version)
	assert.Equal(t, "disconnected", body.State)
}
