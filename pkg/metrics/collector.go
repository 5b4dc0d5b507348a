package metrics

import (
	"github.com/cuemby/keyforge/pkg/events"
)

// Collector keeps session gauges and the health view in step with worker events
type Collector struct {
	broker *events.Broker
	sub    events.Subscriber
	doneCh chan struct{}
}

// NewCollector creates a collector for the broker's events
func NewCollector(broker *events.Broker) *Collector {
	return &Collector{
		broker: broker,
		doneCh: make(chan struct{}),
	}
}

// Start subscribes to the broker and begins collecting
func (c *Collector) Start() {
	c.sub = c.broker.Subscribe()
	go func() {
		defer close(c.doneCh)
		for event := range c.sub {
			c.collect(event)
		}
	}()
}

// Stop unsubscribes and waits for the collect loop to drain
func (c *Collector) Stop() {
	c.broker.Unsubscribe(c.sub)
	<-c.doneCh
}

func (c *Collector) collect(event *events.Event) {
	switch event.Type {
	case events.EventSessionConnected:
		SessionConnected.Set(1)
		SetSession(true, event.Message)

	case events.EventSessionDisconnected:
		SessionConnected.Set(0)
		Reconnects.Inc()
		SetSession(false, event.Reason)

	case events.EventHandshakeRejected:
		SessionConnected.Set(0)
		HandshakeRejections.Inc()
		SetSession(false, "credential rejected")

	case events.EventJobCompleted:
		JobsTotal.WithLabelValues("completed").Inc()

	case events.EventJobFailed:
		JobsTotal.WithLabelValues("failed").Inc()
		if event.Fatal {
			DeviceFailed(event.Reason)
		}

	case events.EventResultDelivered:
		ResultDeliveries.WithLabelValues("delivered").Inc()
		SetPendingResults(event.Pending)

	case events.EventResultQueued:
		ResultDeliveries.WithLabelValues("queued").Inc()
		SetPendingResults(event.Pending)
	}
}
