/*
Package worker implements the session state machine of a key-search worker.

A Worker owns one connection at a time to the coordinating server and one
JobRunner (the batch scheduler bound to the device). Everything runs on the
goroutine that calls Run; the only concurrency inside a job is the
scheduler's fold fan-out.

# State Machine

	Connecting ──► Handshaking ──► Flushing ──► RequestingJob ◄──────────┐
	                                                 │                   │
	                                    NO_JOB: wait │ NEW_JOB           │ ACK
	                                                 ▼                   │
	                                            AwaitingJob ──► Executing ──► SendingResult

	transport fault in any state ──► Disconnected ──(reconnect interval)──► Connecting

ShuttingDown is entered once the context is cancelled. Cancellation is
observed between jobs and between reconnect cycles only: a job that started
runs to completion and its result is sent (or queued) first.

# Fault Policy

	transport fault        close, wait ReconnectInterval, reconnect (forever)
	WRONG_PASSWORD         logged, same as a transport fault; queue untouched
	NO_JOB                 logged at debug, request again after IdleInterval
	malformed NEW_JOB      transport fault (rejected by wire.ReadJob)
	other job error        job dropped, session closed and reconnected
	device / job setup     Run returns the error; the process should exit
	queue storage failure  Run returns the error

# Delivery Guarantee

A finished result is sent once. If the send fails it is pushed onto the
pending queue and the session is dropped. After the next handshake the queue
is replayed oldest first, before any new JOB_REQUEST, and an item is removed
only after the server acknowledged it. With the default in-memory queue the
guarantee holds while the process lives; a BoltDB queue extends it across
restarts.

# Observability

Lifecycle events (session.connected, result.queued, ...) are published to an
optional events.Broker; metrics.Collector turns them into Prometheus series
and health components. StateMonitor exports the current state as a gauge.
*/
package worker
