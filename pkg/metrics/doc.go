/*
Package metrics provides Prometheus metrics and health endpoints for the worker.

All collectors are package-level variables registered with the default
registry at init and exposed through Handler(). Health is a single view of
the worker: the opened device and any device fault, the session, the
current state machine state and the pending result count.

# Metrics

Jobs:

	keyforge_jobs_total{outcome}                 completed | failed
	keyforge_job_duration_seconds                histogram
	keyforge_job_progress_ratio                  0..1 for the running job

Scheduler:

	keyforge_candidates_evaluated_total
	keyforge_sub_batch_duration_seconds{phase}   evaluate | fold
	keyforge_throughput_candidates_per_second

Session:

	keyforge_worker_state{state}                 1 for the current state
	keyforge_session_connected
	keyforge_reconnects_total
	keyforge_pending_results
	keyforge_result_deliveries_total{outcome}    delivered | queued
	keyforge_handshake_rejections_total

# Endpoints

When metrics.addr is configured the worker serves:

	/metrics   Prometheus exposition
	/health    200 while the device is usable, 503 after a device fault
	/ready     200 while connected and requesting, executing or sending
	/live      always 200 while the process runs

# Collector

Collector subscribes to an events.Broker and keeps the session gauges and
health view in step with lifecycle events, so the worker loop only
publishes events and never touches the registry for session state.
*/
package metrics
