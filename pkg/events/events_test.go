package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
		return nil
	}
}

func TestBrokerFanOut(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	a := broker.Subscribe()
	b := broker.Subscribe()
	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventJobReceived, JobID: "1", SessionID: "s-1"})

	for _, sub := range []Subscriber{a, b} {
		ev := receive(t, sub)
		assert.Equal(t, EventJobReceived, ev.Type)
		assert.Equal(t, "1", ev.JobID)
		assert.Equal(t, "s-1", ev.SessionID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestSubscribeFiltersTypes(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	results := broker.Subscribe(EventResultDelivered, EventResultQueued)
	all := broker.Subscribe()

	broker.Publish(&Event{Type: EventJobReceived, JobID: "7"})
	broker.Publish(&Event{Type: EventResultQueued, JobID: "7", Pending: 1})

	assert.Equal(t, EventJobReceived, receive(t, all).Type)
	assert.Equal(t, EventResultQueued, receive(t, all).Type)

	ev := receive(t, results)
	assert.Equal(t, EventResultQueued, ev.Type)
	assert.Equal(t, 1, ev.Pending)
	assert.Empty(t, results)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)
	assert.Zero(t, broker.SubscriberCount())

	_, open := <-sub
	require.False(t, open)

	// second call is a no-op
	broker.Unsubscribe(sub)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	_ = broker.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			broker.Publish(&Event{Type: EventResultQueued})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	require.Eventually(t, func() bool { return broker.Dropped() > 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishAfterStopReturns(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	broker.Stop()
	broker.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < publishBuffer+1; i++ {
			broker.Publish(&Event{Type: EventJobCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after stop")
	}
}
