package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is the JSON body served by /health and /ready
type Status struct {
	Status         string    `json:"status"` // healthy | unhealthy | ready | not_ready
	Timestamp      time.Time `json:"timestamp"`
	Device         string    `json:"device,omitempty"`
	DeviceError    string    `json:"device_error,omitempty"`
	Session        string    `json:"session"`
	State          string    `json:"state,omitempty"`
	PendingResults int       `json:"pending_results"`
	Message        string    `json:"message,omitempty"`
	Version        string    `json:"version,omitempty"`
	Uptime         string    `json:"uptime"`
}

// workerHealth is the process view of the worker fed by the CLI, the
// Collector and the worker's state monitor
type workerHealth struct {
	mu        sync.RWMutex
	start     time.Time
	version   string
	device    string
	deviceErr string
	connected bool
	session   string
	state     string
	serving   bool
	pending   int
}

var health = newWorkerHealth()

func newWorkerHealth() *workerHealth {
	return &workerHealth{start: time.Now(), session: "not connected"}
}

// SetVersion sets the version reported by /health and /ready
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// SetDevice records the opened compute device and clears any earlier fault
func SetDevice(name string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.device = name
	health.deviceErr = ""
}

// DeviceFailed marks the device as unusable. The worker stops after a device fault
func DeviceFailed(reason string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.deviceErr = reason
}

// SetSession records whether a server session is established
func SetSession(connected bool, message string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.connected = connected
	health.session = message
}

// SetWorkerState records the session state and whether it accepts work
func SetWorkerState(state string, serving bool) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.state = state
	health.serving = serving
}

// SetPendingResults records the redelivery queue depth
func SetPendingResults(n int) {
	PendingResults.Set(float64(n))

	health.mu.Lock()
	defer health.mu.Unlock()
	health.pending = n
}

func (h *workerHealth) snapshot(status string) Status {
	return Status{
		Status:         status,
		Timestamp:      time.Now(),
		Device:         h.device,
		DeviceError:    h.deviceErr,
		Session:        h.session,
		State:          h.state,
		PendingResults: h.pending,
		Version:        h.version,
		Uptime:         time.Since(h.start).String(),
	}
}

// GetHealth reports unhealthy only when no device is open or the device faulted.
// A lost session is part of normal operation and does not affect health
func GetHealth() Status {
	health.mu.RLock()
	defer health.mu.RUnlock()

	switch {
	case health.device == "":
		s := health.snapshot("unhealthy")
		s.Message = "no compute device"
		return s
	case health.deviceErr != "":
		s := health.snapshot("unhealthy")
		s.Message = "device fault"
		return s
	default:
		return health.snapshot("healthy")
	}
}

// GetReadiness reports ready while the device is usable, a session is up and
// the worker is in a state that takes or runs jobs
func GetReadiness() Status {
	health.mu.RLock()
	defer health.mu.RUnlock()

	var message string
	switch {
	case health.device == "" || health.deviceErr != "":
		message = "waiting for device"
	case !health.connected:
		message = "waiting for session: " + health.session
	case !health.serving:
		message = "worker is " + health.state
	default:
		return health.snapshot("ready")
	}

	s := health.snapshot("not_ready")
	s.Message = message
	return s
}

func writeStatus(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler returns an HTTP handler for the /health endpoint
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := GetHealth()
		code := http.StatusOK
		if s.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, s)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := GetReadiness()
		code := http.StatusOK
		if s.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, s)
	}
}

// LivenessHandler answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health.mu.RLock()
		uptime := time.Since(health.start).String()
		health.mu.RUnlock()

		writeStatus(w, http.StatusOK, map[string]string{"status": "alive", "uptime": uptime})
	}
}
