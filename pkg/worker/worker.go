package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/keyforge/pkg/client"
	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/events"
	"github.com/cuemby/keyforge/pkg/log"
	"github.com/cuemby/keyforge/pkg/storage"
	"github.com/cuemby/keyforge/pkg/types"
	"github.com/cuemby/keyforge/pkg/wire"
)

// JobRunner evaluates one job to completion
type JobRunner interface {
	Run(ctx context.Context, job *types.Job) (*types.JobResult, error)
}

// Config holds worker configuration
type Config struct {
	ID                string
	Identity          string // Sent in HELLO, e.g. "<hostname>/<device>"
	Credential        string
	Dialer            *client.Dialer
	ReconnectInterval time.Duration
	IdleInterval      time.Duration       // Wait after NO_JOB before asking again
	Queue             storage.ResultQueue // nil: in-memory
	Broker            *events.Broker      // nil: no lifecycle events
}

// Worker drives the session protocol and hands jobs to a JobRunner.
// All session state is owned by the goroutine calling Run
type Worker struct {
	cfg    Config
	runner JobRunner
	queue  storage.ResultQueue
	state  atomic.Int32
	logger zerolog.Logger
}

// fatalError ends Run: the device or the pending queue can no longer be trusted
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// NewWorker creates a worker instance
func NewWorker(cfg *Config, runner JobRunner) (*Worker, error) {
	if cfg.Dialer == nil || cfg.Dialer.Address == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("job runner is required")
	}
	if cfg.ReconnectInterval <= 0 {
		return nil, fmt.Errorf("reconnect interval must be positive")
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = time.Second
	}

	queue := cfg.Queue
	if queue == nil {
		queue = storage.NewMemoryQueue()
	}

	w := &Worker{
		cfg:    *cfg,
		runner: runner,
		queue:  queue,
		logger: log.WithWorkerID(log.WithComponent("worker"), cfg.ID),
	}
	w.setState(StateConnecting)
	return w, nil
}

// State returns the current session state
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Pending returns the number of results waiting for redelivery
func (w *Worker) Pending() int {
	return w.queue.Len()
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run connects, serves jobs and reconnects after transport or protocol faults
// until ctx is cancelled. Cancellation is observed between jobs and between
// reconnect cycles; a job that already started always completes and its
// result is sent. Run returns nil on shutdown and an error only for device,
// job-setup or queue faults. Any other job failure ends the session only
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			w.setState(StateShuttingDown)
			w.logger.Info().Int("pending", w.queue.Len()).Msg("Worker shutting down")
			return nil
		}

		err := w.session(ctx)

		var fatal *fatalError
		if errors.As(err, &fatal) {
			w.setState(StateShuttingDown)
			return fatal.err
		}
		if ctx.Err() != nil {
			continue
		}

		msg := "Session ended"
		if w.State() == StateConnecting {
			msg = "Failed to connect to server"
		}
		w.setState(StateDisconnected)
		w.logger.Warn().
			Err(err).
			Dur("retry_in", w.cfg.ReconnectInterval).
			Int("pending", w.queue.Len()).
			Msgf("%s, reconnecting in %s", msg, w.cfg.ReconnectInterval)

		sleep(ctx, w.cfg.ReconnectInterval)
	}
}

// session runs one connection from dial to the first fault
func (w *Worker) session(ctx context.Context) error {
	w.setState(StateConnecting)
	conn, err := w.cfg.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger := log.WithSessionID(w.logger, conn.ID())
	if err := w.handshake(conn, logger); err != nil {
		w.disconnected(conn, err)
		return err
	}

	if err := w.flush(conn, logger); err != nil {
		w.disconnected(conn, err)
		return err
	}

	for ctx.Err() == nil {
		job, err := w.requestJob(ctx, conn, logger)
		if err != nil {
			if errors.Is(err, client.ErrWrongPassword) {
				w.rejected(conn, logger)
			} else {
				w.disconnected(conn, err)
			}
			return err
		}
		if job == nil {
			continue
		}

		if err := w.execute(ctx, conn, job, logger); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (w *Worker) handshake(conn *client.Conn, logger zerolog.Logger) error {
	w.setState(StateHandshaking)
	err := conn.Hello(wire.Hello{Identity: w.cfg.Identity, Credential: w.cfg.Credential})
	if errors.Is(err, client.ErrWrongPassword) {
		w.rejected(conn, logger)
		return err
	}
	if err != nil {
		return err
	}

	logger.Info().Str("server", conn.RemoteAddr()).Str("identity", w.cfg.Identity).Msg("Connected to server")
	w.publish(&events.Event{
		Type:      events.EventSessionConnected,
		SessionID: conn.ID(),
		Message:   "connected to " + conn.RemoteAddr(),
	})
	return nil
}

// flush replays queued results oldest first. An item is removed only after its ACK
func (w *Worker) flush(conn *client.Conn, logger zerolog.Logger) error {
	w.setState(StateFlushing)
	for w.queue.Len() > 0 {
		res, err := w.queue.Peek()
		if err != nil {
			return &fatalError{fmt.Errorf("failed to read pending result: %w", err)}
		}
		if err := conn.SendResult(res); err != nil {
			return err
		}
		if err := w.queue.Pop(); err != nil {
			return &fatalError{fmt.Errorf("failed to remove delivered result %s: %w", res.JobID, err)}
		}

		logger.Info().Str("job_id", res.JobID).Int("pending", w.queue.Len()).Msg("Delivered queued result")
		w.publish(&events.Event{
			Type:      events.EventResultDelivered,
			SessionID: conn.ID(),
			JobID:     res.JobID,
			Pending:   w.queue.Len(),
			Message:   "queued result delivered",
		})
	}
	return nil
}

// requestJob asks for work once. It returns (nil, nil) after NO_JOB and the idle wait
func (w *Worker) requestJob(ctx context.Context, conn *client.Conn, logger zerolog.Logger) (*types.Job, error) {
	w.setState(StateRequestingJob)
	job, err := conn.RequestJob()
	w.setState(StateAwaitingJob)

	if errors.Is(err, client.ErrNoJob) {
		logger.Debug().Dur("retry_in", w.cfg.IdleInterval).Msg("No job available")
		sleep(ctx, w.cfg.IdleInterval)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// execute runs the job and delivers its result, queueing it on a transport fault
func (w *Worker) execute(ctx context.Context, conn *client.Conn, job *types.Job, logger zerolog.Logger) error {
	logger = log.WithJobID(logger, job.ID)
	w.setState(StateExecuting)

	logger.Info().
		Int32("total", job.TotalSize).
		Int32("k", job.Capacity).
		Str("ordering", job.Ordering.String()).
		Bool("reuse_kernel", job.ReuseKernel).
		Msg("Job received")
	w.publish(&events.Event{Type: events.EventJobReceived, SessionID: conn.ID(), JobID: job.ID})

	// Jobs are never preempted by shutdown
	res, err := w.runner.Run(context.WithoutCancel(ctx), job)
	if err != nil {
		fatal := compute.IsFatal(err)
		logger.Error().Err(err).Bool("fatal", fatal).Msg("Job failed")
		w.publish(&events.Event{
			Type:      events.EventJobFailed,
			SessionID: conn.ID(),
			JobID:     job.ID,
			Reason:    err.Error(),
			Fatal:     fatal,
		})
		err = fmt.Errorf("job %s failed: %w", job.ID, err)
		if fatal {
			return &fatalError{err}
		}
		w.disconnected(conn, err)
		return err
	}

	logger.Info().Int("candidates", len(res.Candidates)).Msg("Job completed")
	w.publish(&events.Event{
		Type:       events.EventJobCompleted,
		SessionID:  conn.ID(),
		JobID:      job.ID,
		Candidates: len(res.Candidates),
	})

	w.setState(StateSendingResult)
	if err := conn.SendResult(res); err != nil {
		if qerr := w.queue.Push(res); qerr != nil {
			return &fatalError{fmt.Errorf("failed to queue result %s: %w", job.ID, qerr)}
		}
		logger.Warn().Err(err).Int("pending", w.queue.Len()).Msg("Result delivery failed, queued for retry")
		w.publish(&events.Event{
			Type:      events.EventResultQueued,
			SessionID: conn.ID(),
			JobID:     job.ID,
			Pending:   w.queue.Len(),
			Reason:    err.Error(),
		})
		w.disconnected(conn, err)
		return err
	}

	w.publish(&events.Event{
		Type:      events.EventResultDelivered,
		SessionID: conn.ID(),
		JobID:     job.ID,
		Pending:   w.queue.Len(),
	})
	return nil
}

func (w *Worker) rejected(conn *client.Conn, logger zerolog.Logger) {
	logger.Error().Str("server", conn.RemoteAddr()).Msg("Server rejected credential")
	w.publish(&events.Event{Type: events.EventHandshakeRejected, SessionID: conn.ID(), Message: "credential rejected"})
}

func (w *Worker) disconnected(conn *client.Conn, err error) {
	w.publish(&events.Event{Type: events.EventSessionDisconnected, SessionID: conn.ID(), Reason: err.Error()})
}

func (w *Worker) publish(ev *events.Event) {
	if w.cfg.Broker == nil {
		return
	}
	ev.ID = uuid.New().String()
	w.cfg.Broker.Publish(ev)
}

// sleep waits for d and reports false if ctx was cancelled first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
