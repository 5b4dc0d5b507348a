package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType names a worker lifecycle event
type EventType string

const (
	EventSessionConnected    EventType = "session.connected"
	EventSessionDisconnected EventType = "session.disconnected"
	EventHandshakeRejected   EventType = "handshake.rejected"
	EventJobReceived         EventType = "job.received"
	EventJobCompleted        EventType = "job.completed"
	EventJobFailed           EventType = "job.failed"
	EventResultDelivered     EventType = "result.delivered"
	EventResultQueued        EventType = "result.queued"
)

// Event is one worker lifecycle event. Fields that do not apply to the type stay zero
type Event struct {
	ID         string
	Type       EventType
	Timestamp  time.Time
	SessionID  string
	JobID      string
	Candidates int    // job.completed
	Pending    int    // result.*: queued results after the event
	Reason     string // session.disconnected, job.failed
	Fatal      bool   // job.failed: the device can no longer be trusted
	Message    string
}

// Subscriber receives events in publish order
type Subscriber chan *Event

const (
	publishBuffer    = 100
	subscriberBuffer = 50
)

// Broker fans worker events out to subscribers. A subscriber that falls
// behind loses events instead of stalling the session loop
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]map[EventType]bool // nil filter: every type
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	dropped     atomic.Uint64
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]map[EventType]bool),
		eventCh:     make(chan *Event, publishBuffer),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop ends distribution. Later Publish calls return without delivering
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe registers a subscriber for the given types, or for every type when none are given
func (b *Broker) Subscribe(types ...EventType) Subscriber {
	var filter map[EventType]bool
	if len(types) > 0 {
		filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, subscriberBuffer)
	b.subscribers[sub] = filter
	return sub
}

// Unsubscribe removes and closes sub. Unknown subscribers are ignored
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues event for distribution, stamping it if needed
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, filter := range b.subscribers {
		if filter != nil && !filter[event.Type] {
			continue
		}
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber was full
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}
