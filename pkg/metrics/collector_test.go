package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/keyforge/pkg/events"
)

func startCollector(t *testing.T) (*events.Broker, *Collector) {
	t.Helper()
	health = newWorkerHealth()
	SetDevice("cpu-8")

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	collector := NewCollector(broker)
	collector.Start()
	return broker, collector
}

func TestCollectorTracksSessionEvents(t *testing.T) {
	broker, collector := startCollector(t)

	reconnects := testutil.ToFloat64(Reconnects)
	queued := testutil.ToFloat64(ResultDeliveries.WithLabelValues("queued"))

	broker.Publish(&events.Event{Type: events.EventSessionConnected, SessionID: "s-1", Message: "connected"})
	broker.Publish(&events.Event{Type: events.EventResultQueued, JobID: "j1", Pending: 2})
	broker.Publish(&events.Event{Type: events.EventSessionDisconnected, SessionID: "s-1", Reason: "connection reset"})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(Reconnects) == reconnects+1
	}, time.Second, 10*time.Millisecond)

	collector.Stop()

	assert.Equal(t, queued+1, testutil.ToFloat64(ResultDeliveries.WithLabelValues("queued")))
	assert.Equal(t, float64(2), testutil.ToFloat64(PendingResults))
	assert.Equal(t, float64(0), testutil.ToFloat64(SessionConnected))

	// losing the session leaves the worker healthy but not ready
	assert.Equal(t, "healthy", GetHealth().Status)
	ready := GetReadiness()
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "connection reset", ready.Session)
	assert.Equal(t, 2, ready.PendingResults)
}

func TestCollectorFatalJobFailureMarksDevice(t *testing.T) {
	broker, collector := startCollector(t)

	failed := testutil.ToFloat64(JobsTotal.WithLabelValues("failed"))
	broker.Publish(&events.Event{Type: events.EventJobFailed, JobID: "j2", Reason: "program build failed", Fatal: true})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(JobsTotal.WithLabelValues("failed")) == failed+1
	}, time.Second, 10*time.Millisecond)
	collector.Stop()

	s := GetHealth()
	assert.Equal(t, "unhealthy", s.Status)
	assert.Equal(t, "program build failed", s.DeviceError)
}

func TestCollectorRecoverableJobFailureKeepsDevice(t *testing.T) {
	broker, collector := startCollector(t)

	failed := testutil.ToFloat64(JobsTotal.WithLabelValues("failed"))
	broker.Publish(&events.Event{Type: events.EventJobFailed, JobID: "j3", Reason: "encoder unavailable"})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(JobsTotal.WithLabelValues("failed")) == failed+1
	}, time.Second, 10*time.Millisecond)
	collector.Stop()

	assert.Equal(t, "healthy", GetHealth().Status)
}
