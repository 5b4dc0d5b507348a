package scheduler

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cuemby/keyforge/pkg/metrics"
)

// Progress is the telemetry emitted after each sub-batch
type Progress struct {
	JobID      string
	Batch      int // 1-based index of the sub-batch just finished
	Batches    int
	Done       int // Candidates evaluated so far
	Total      int
	Fraction   float64
	Throughput float64 // Candidates per second since the previous boundary
	ETA        time.Duration
	Elapsed    time.Duration
}

// ProgressFunc receives telemetry. It runs on the scheduling goroutine and must not block
type ProgressFunc func(Progress)

// progressTracker turns sub-batch boundary timestamps into Progress values
type progressTracker struct {
	jobID   string
	total   int
	batches int
	started time.Time
	last    time.Time
	done    int
}

func newProgressTracker(jobID string, total, batches int, now time.Time) *progressTracker {
	return &progressTracker{jobID: jobID, total: total, batches: batches, started: now, last: now}
}

func (p *progressTracker) advance(batch, length int, now time.Time) Progress {
	p.done += length
	pr := Progress{
		JobID:   p.jobID,
		Batch:   batch,
		Batches: p.batches,
		Done:    p.done,
		Total:   p.total,
		Elapsed: now.Sub(p.started),
	}
	if p.total > 0 {
		pr.Fraction = float64(p.done) / float64(p.total)
	}
	if dt := now.Sub(p.last).Seconds(); dt > 0 {
		pr.Throughput = float64(length) / dt
	}
	if pr.Throughput > 0 {
		remaining := float64(p.total - p.done)
		pr.ETA = time.Duration(remaining / pr.Throughput * float64(time.Second))
	}
	p.last = now
	return pr
}

// LogReporter returns a ProgressFunc that sets the progress gauges on every
// call and logs at most once per interval. The final sub-batch is always logged
func LogReporter(logger zerolog.Logger, interval time.Duration) ProgressFunc {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	return func(p Progress) {
		metrics.JobProgress.Set(p.Fraction)
		metrics.Throughput.Set(p.Throughput)

		if p.Batch != p.Batches && !limiter.Allow() {
			return
		}
		logger.Info().
			Str("job_id", p.JobID).
			Int("batch", p.Batch).
			Int("batches", p.Batches).
			Float64("progress", p.Fraction*100).
			Float64("candidates_per_sec", p.Throughput).
			Dur("eta", p.ETA).
			Msg("Job progress")
	}
}
