package scheduler

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/viterin/vek/vek32"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/log"
	"github.com/cuemby/keyforge/pkg/metrics"
	"github.com/cuemby/keyforge/pkg/topk"
	"github.com/cuemby/keyforge/pkg/types"
)

// Options configures a Scheduler
type Options struct {
	FoldWorkers int          // Parallel ranges per sub-batch fold; 0 means GOMAXPROCS
	Progress    ProgressFunc // nil disables telemetry
}

// Scheduler runs jobs on one backend, one sub-batch at a time
type Scheduler struct {
	backend     compute.Backend
	foldWorkers int
	progress    ProgressFunc
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates a scheduler bound to backend
func New(backend compute.Backend, opts Options) *Scheduler {
	workers := opts.FoldWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{
		backend:     backend,
		foldWorkers: workers,
		progress:    opts.Progress,
		logger:      log.WithComponent("scheduler"),
		now:         time.Now,
	}
}

// Run evaluates the job's whole key space and returns its top-K list.
//
// ctx is only checked before the first sub-batch: once dispatch starts the
// job runs to completion. Any error returned is a device or job-setup fault
func (s *Scheduler) Run(ctx context.Context, job *types.Job) (*types.JobResult, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := log.WithJobID(s.logger, job.ID)
	timer := metrics.NewTimer()

	if err := s.backend.Prepare(job); err != nil {
		return nil, fmt.Errorf("failed to prepare job %s: %w", job.ID, err)
	}

	tracker := topk.New(int(job.Capacity), job.PreferLarger())
	batches := Partition(int(job.TotalSize), s.backend.Capacity())

	logger.Debug().
		Int32("total", job.TotalSize).
		Int("batches", len(batches)).
		Int32("k", job.Capacity).
		Str("ordering", job.Ordering.String()).
		Msg("Starting job")

	progress := newProgressTracker(job.ID, int(job.TotalSize), len(batches), s.now())
	for i, b := range batches {
		evalTimer := metrics.NewTimer()
		scores, err := s.backend.Evaluate(b.Start, b.Length)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate [%d,%d) of job %s: %w", b.Start, b.End(), job.ID, err)
		}
		if len(scores) != b.Length {
			return nil, &compute.DeviceError{
				Kind: compute.ErrBuffer,
				Op:   fmt.Sprintf("read back %d scores for [%d,%d), got %d", b.Length, b.Start, b.End(), len(scores)),
			}
		}
		evalTimer.ObserveDurationVec(metrics.SubBatchDuration, "evaluate")
		metrics.CandidatesEvaluated.Add(float64(b.Length))

		foldTimer := metrics.NewTimer()
		if err := s.fold(tracker, scores, b.Start); err != nil {
			return nil, fmt.Errorf("failed to fold [%d,%d) of job %s: %w", b.Start, b.End(), job.ID, err)
		}
		foldTimer.ObserveDurationVec(metrics.SubBatchDuration, "fold")

		if s.progress != nil {
			s.progress(progress.advance(i+1, b.Length, s.now()))
		}
	}

	timer.ObserveDuration(metrics.JobDuration)
	logger.Debug().Int("kept", tracker.Len()).Dur("duration", timer.Duration()).Msg("Job evaluated")

	return &types.JobResult{
		JobID:       job.ID,
		Candidates:  tracker.Entries(),
		CompletedAt: s.now(),
	}, nil
}

// fold scans disjoint ranges of scores in parallel into local trackers and
// merges them into tracker in ascending range order. tracker is only read
// during the fan-out
func (s *Scheduler) fold(tracker *topk.Tracker, scores []float32, offset int) error {
	n := len(scores)
	if n == 0 {
		return nil
	}
	workers := min(s.foldWorkers, n)
	chunk := (n + workers - 1) / workers
	worst := tracker.Worst()
	locals := make([]*topk.Tracker, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := min(lo+chunk, n)
		g.Go(func() error {
			part := scores[lo:hi]
			if !canImprove(tracker, part, worst) {
				return nil
			}
			local := topk.New(tracker.Cap(), tracker.PreferLarger())
			for i, score := range part {
				if !tracker.Better(score, worst) {
					continue
				}
				local.Insert(score, int32(offset+lo+i))
			}
			locals[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, local := range locals {
		tracker.Merge(local)
	}
	return nil
}

// canImprove reports whether any score in part may enter a tracker whose worst kept score is worst
func canImprove(tracker *topk.Tracker, part []float32, worst float32) bool {
	if len(part) == 0 {
		return false
	}
	var best float32
	if tracker.PreferLarger() {
		best = vek32.Max(part)
	} else {
		best = vek32.Min(part)
	}
	if math.IsNaN(float64(best)) {
		return true
	}
	return tracker.Better(best, worst)
}
