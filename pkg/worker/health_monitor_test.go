package worker

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/keyforge/pkg/client"
	"github.com/cuemby/keyforge/pkg/metrics"
	"github.com/cuemby/keyforge/pkg/scheduler"
)

func TestStateMonitorExportsCurrentState(t *testing.T) {
	w, err := NewWorker(&Config{
		Dialer:            &client.Dialer{Address: "127.0.0.1:1"},
		ReconnectInterval: time.Second,
	}, scheduler.New(nil, scheduler.Options{}))
	require.NoError(t, err)

	w.setState(StateExecuting)
	m := NewStateMonitor(w, time.Hour)
	m.Start()
	m.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WorkerState.WithLabelValues("executing")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WorkerState.WithLabelValues("connecting")))

	metrics.SetDevice("cpu-test")
	metrics.SetSession(true, "connected")
	assert.Equal(t, "ready", metrics.GetReadiness().Status)
	assert.Equal(t, "executing", metrics.GetReadiness().State)
}
