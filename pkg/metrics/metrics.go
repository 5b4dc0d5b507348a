package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyforge_jobs_total",
			Help: "Total number of jobs by outcome",
		},
		[]string{"outcome"},
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keyforge_job_duration_seconds",
			Help:    "Wall-clock time to evaluate a whole job",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	// Scheduler metrics
	CandidatesEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyforge_candidates_evaluated_total",
			Help: "Total number of candidate indices scored on the device",
		},
	)

	SubBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyforge_sub_batch_duration_seconds",
			Help:    "Time spent per sub-batch by phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	Throughput = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyforge_throughput_candidates_per_second",
			Help: "Candidates per second over the last sub-batch",
		},
	)

	JobProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyforge_job_progress_ratio",
			Help: "Fraction of the current job's key space evaluated",
		},
	)

	// Session metrics
	PendingResults = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyforge_pending_results",
			Help: "Results waiting for redelivery",
		},
	)

	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyforge_reconnects_total",
			Help: "Total number of session reconnect cycles",
		},
	)

	ResultDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyforge_result_deliveries_total",
			Help: "Total number of result delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	HandshakeRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyforge_handshake_rejections_total",
			Help: "Total number of handshakes rejected by the server",
		},
	)

	WorkerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keyforge_worker_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	SessionConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyforge_session_connected",
			Help: "Whether the worker holds an authenticated session (1 = connected)",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(CandidatesEvaluated)
	prometheus.MustRegister(SubBatchDuration)
	prometheus.MustRegister(Throughput)
	prometheus.MustRegister(JobProgress)
	prometheus.MustRegister(PendingResults)
	prometheus.MustRegister(Reconnects)
	prometheus.MustRegister(ResultDeliveries)
	prometheus.MustRegister(HandshakeRejections)
	prometheus.MustRegister(WorkerState)
	prometheus.MustRegister(SessionConnected)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
