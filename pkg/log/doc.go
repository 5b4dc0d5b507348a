/*
Package log provides structured logging for keyforge using zerolog.

The package holds one global zerolog.Logger configured once at startup by
Init. Components derive child loggers that carry identifying fields, so every
line can be traced back to the worker, session and job that produced it.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stderr,
	})

Level filters messages below the threshold. JSONOutput switches between JSON
lines (for log shippers) and the human-readable console writer. Output
defaults to stdout.

# Context Loggers

  - WithComponent("scheduler"): component=scheduler
  - WithWorkerID(logger, id): worker_id=<worker id>
  - WithSessionID(logger, id): session_id=<uuid of one server connection>
  - WithJobID(logger, id): job_id=<server job id>

Session and job loggers are derived from an existing logger so fields stack:

	logger := log.WithComponent("worker")
	jobLogger := log.WithJobID(log.WithSessionID(logger, sessionID), job.ID)
	jobLogger.Info().Int32("total", job.TotalSize).Msg("Job received")

# Levels

  - debug: per-request protocol traffic, empty job queue polls
  - info: connections, jobs, progress telemetry
  - warn: reconnects, queued results, rejected handshakes
  - error: device faults and build logs

Before Init is called the package logger writes JSON to stdout, which keeps
tests and library use quiet-but-functional without extra setup.
*/
package log
