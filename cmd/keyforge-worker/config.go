package main

import (
	"github.com/spf13/cobra"

	"github.com/cuemby/keyforge/pkg/config"
	"github.com/cuemby/keyforge/pkg/log"
)

// loadConfig reads --config (or the defaults) and applies every flag the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("server") != nil {
		applyRunFlags(cmd, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server.Address, _ = flags.GetString("server")
	}
	if flags.Changed("credential") {
		cfg.Server.Credential, _ = flags.GetString("credential")
	}
	if flags.Changed("reconnect-interval") {
		cfg.Server.ReconnectInterval, _ = flags.GetDuration("reconnect-interval")
	}
	if flags.Changed("id") {
		cfg.Worker.ID, _ = flags.GetString("id")
	}
	if flags.Changed("identity") {
		cfg.Worker.Identity, _ = flags.GetString("identity")
	}
	if flags.Changed("backend") {
		cfg.Device.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("platform") {
		cfg.Device.Platform, _ = flags.GetInt("platform")
	}
	if flags.Changed("device") {
		cfg.Device.Index, _ = flags.GetInt("device")
	}
	if flags.Changed("fold-workers") {
		cfg.Scheduler.FoldWorkers, _ = flags.GetInt("fold-workers")
	}
	if flags.Changed("queue") {
		cfg.Queue.Path, _ = flags.GetString("queue")
	}
	if flags.Changed("float-order") {
		cfg.Wire.FloatOrder, _ = flags.GetString("float-order")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
}
