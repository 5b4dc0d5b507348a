package worker

import (
	"time"

	"github.com/cuemby/keyforge/pkg/metrics"
)

// StateMonitor periodically exports the worker state gauge and readiness
type StateMonitor struct {
	worker   *Worker
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewStateMonitor creates a monitor sampling w every interval
func NewStateMonitor(w *Worker, interval time.Duration) *StateMonitor {
	return &StateMonitor{
		worker:   w,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the monitor loop
func (m *StateMonitor) Start() {
	go m.monitorLoop()
}

// Stop stops the monitor and waits for the loop to exit
func (m *StateMonitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

func (m *StateMonitor) monitorLoop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sample()
	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopCh:
			m.sample()
			return
		}
	}
}

func (m *StateMonitor) sample() {
	current := m.worker.State()
	for _, s := range States() {
		v := 0.0
		if s == current {
			v = 1
		}
		metrics.WorkerState.WithLabelValues(s.String()).Set(v)
	}
	metrics.SetWorkerState(current.String(), current.Serving())
}
