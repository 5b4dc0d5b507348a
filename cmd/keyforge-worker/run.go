package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/keyforge/pkg/api"
	"github.com/cuemby/keyforge/pkg/client"
	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/compute/cpu"
	"github.com/cuemby/keyforge/pkg/compute/opencl"
	"github.com/cuemby/keyforge/pkg/config"
	"github.com/cuemby/keyforge/pkg/events"
	"github.com/cuemby/keyforge/pkg/log"
	"github.com/cuemby/keyforge/pkg/metrics"
	"github.com/cuemby/keyforge/pkg/scheduler"
	"github.com/cuemby/keyforge/pkg/storage"
	"github.com/cuemby/keyforge/pkg/wire"
	"github.com/cuemby/keyforge/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the server and process jobs",
	Long: `Open the compute device, connect to the coordinating server and process
jobs until interrupted.

The first SIGINT/SIGTERM lets the current job finish and deliver its result
before exiting. A second signal exits immediately. Device failures exit
with a non-zero status so a supervisor can restart the worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runWorker(cfg)
	},
}

func init() {
	runCmd.Flags().String("server", "", "Server address (host:port)")
	runCmd.Flags().String("credential", "", "Credential sent in the handshake")
	runCmd.Flags().Duration("reconnect-interval", 0, "Wait between reconnect attempts")
	runCmd.Flags().String("id", "", "Worker ID (default: random UUID)")
	runCmd.Flags().String("identity", "", "Identity sent in the handshake (default: <hostname>/<device>)")
	runCmd.Flags().String("backend", "", "Compute backend (opencl, cpu)")
	runCmd.Flags().Int("platform", 0, "OpenCL platform number (see 'devices')")
	runCmd.Flags().Int("device", 0, "OpenCL device number on the platform (see 'devices')")
	runCmd.Flags().Int("fold-workers", 0, "Parallel ranges per sub-batch fold (default: GOMAXPROCS)")
	runCmd.Flags().String("queue", "", "BoltDB file for undelivered results (default: in-memory)")
	runCmd.Flags().String("float-order", "", "Float byte order on the wire (native, big)")
	runCmd.Flags().String("metrics-addr", "", "Address for /metrics and health endpoints (e.g. :9102)")
}

func openBackend(cfg *config.Config) (compute.Backend, error) {
	if cfg.Device.Backend == config.BackendCPU {
		b, err := cpu.New(cpu.Options{Dims: cfg.Device.Dims})
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	b, err := opencl.Open(opencl.Options{
		Platform: cfg.Device.Platform,
		Device:   cfg.Device.Index,
		Dims:     cfg.Device.Dims,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func openQueue(cfg *config.Config) (storage.ResultQueue, error) {
	if cfg.Queue.Path == "" {
		return storage.NewMemoryQueue(), nil
	}
	return storage.NewBoltQueue(cfg.Queue.Path)
}

func runWorker(cfg *config.Config) error {
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	if cfg.Worker.ID == "" {
		cfg.Worker.ID = uuid.New().String()
	}
	floatOrder, err := wire.ParseFloatOrder(cfg.Wire.FloatOrder)
	if err != nil {
		return err
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s device: %w", cfg.Device.Backend, err)
	}
	defer backend.Close()
	metrics.SetDevice(backend.Name())

	if cfg.Worker.Identity == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		cfg.Worker.Identity = host + "/" + backend.Name()
	}

	queue, err := openQueue(cfg)
	if err != nil {
		return fmt.Errorf("failed to open result queue: %w", err)
	}
	defer queue.Close()
	metrics.SetPendingResults(queue.Len())

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	collector := metrics.NewCollector(broker)
	collector.Start()
	defer collector.Stop()

	if cfg.Metrics.Addr != "" {
		hs := api.NewHealthServer()
		addr, errCh, err := hs.Start(cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		go func() {
			for err := range errCh {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Shutdown(ctx)
		}()
		logger.Info().Str("addr", addr.String()).Msg("Metrics server listening")
	}

	sched := scheduler.New(backend, scheduler.Options{
		FoldWorkers: cfg.Scheduler.FoldWorkers,
		Progress:    scheduler.LogReporter(log.WithComponent("scheduler"), cfg.Scheduler.ProgressInterval),
	})

	w, err := worker.NewWorker(&worker.Config{
		ID:         cfg.Worker.ID,
		Identity:   cfg.Worker.Identity,
		Credential: cfg.Server.Credential,
		Dialer: &client.Dialer{
			Address:        cfg.Server.Address,
			ConnectTimeout: cfg.Server.ConnectTimeout,
			ReceiveTimeout: cfg.Server.ReceiveTimeout,
			FloatOrder:     floatOrder,
		},
		ReconnectInterval: cfg.Server.ReconnectInterval,
		IdleInterval:      cfg.Server.IdleInterval,
		Queue:             queue,
		Broker:            broker,
	}, sched)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	monitor := worker.NewStateMonitor(w, 5*time.Second)
	monitor.Start()
	defer monitor.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := handleSignals(cancel)
	defer stopSignals()

	logger.Info().
		Str("worker_id", cfg.Worker.ID).
		Str("identity", cfg.Worker.Identity).
		Str("server", cfg.Server.Address).
		Str("device", backend.Name()).
		Int("capacity", backend.Capacity()).
		Int("pending", queue.Len()).
		Msg("Worker starting")

	if err := w.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Worker stopped on fatal error")
		return err
	}
	logger.Info().Int("pending", queue.Len()).Msg("Shutdown complete")
	return nil
}

// handleSignals cancels the run on the first SIGINT/SIGTERM and exits
// immediately on the second
func handleSignals(cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	doneCh := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
		case <-doneCh:
			return
		}
		log.Logger.Warn().Msg("Shutdown requested, finishing current job (signal again to force exit)")
		cancel()

		select {
		case <-sigCh:
			log.Logger.Warn().Msg("Forced exit")
			os.Exit(130)
		case <-doneCh:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(doneCh)
	}
}
