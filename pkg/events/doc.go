/*
Package events provides an in-memory broker for worker lifecycle events.

The session state machine publishes an Event at every transition an operator
might care about; subscribers (the metrics collector, tests, future
exporters) receive them asynchronously without slowing the control loop.

# Architecture

	Publisher → Event Channel (buffer: 100)
	     ↓
	Broadcast Loop (one goroutine)
	     ↓
	Subscriber Channels (buffer: 50 each)

Publish blocks only while the broker's own buffer is full. Delivery to a
subscriber whose buffer is full is skipped, so a slow consumer never stalls
the worker.

# Event Types

	session.connected      handshake acknowledged
	session.disconnected   transport fault, session closed
	handshake.rejected     server answered WRONG_PASSWORD
	job.received           NEW_JOB decoded
	job.completed          scheduler produced a result
	job.failed             job aborted; Fatal set when the worker stops
	result.delivered       server acknowledged a JOB_RESULT
	result.queued          result kept for redelivery

Events carry typed fields: SessionID and JobID where they apply, Pending
after result events, Reason and Fatal on failures. Subscribe accepts a list
of types to receive only those; Dropped counts deliveries skipped for full
subscribers.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			fmt.Println(ev.Type, ev.JobID)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventJobReceived, JobID: "42"})
*/
package events
