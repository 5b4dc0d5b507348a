// Package config loads the worker configuration from YAML
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/wire"
)

// Backend names
const (
	BackendOpenCL = "opencl"
	BackendCPU    = "cpu"
)

// Config is the complete worker configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Worker    WorkerConfig    `yaml:"worker"`
	Device    DeviceConfig    `yaml:"device"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Queue     QueueConfig     `yaml:"queue"`
	Wire      WireConfig      `yaml:"wire"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Address           string        `yaml:"address"`
	Credential        string        `yaml:"credential"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReceiveTimeout    time.Duration `yaml:"receive_timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	IdleInterval      time.Duration `yaml:"idle_interval"`
}

type WorkerConfig struct {
	ID       string `yaml:"id"`       // Empty: generated at startup
	Identity string `yaml:"identity"` // Empty: "<hostname>/<device name>"
}

type DeviceConfig struct {
	Backend  string `yaml:"backend"`
	Platform int    `yaml:"platform"`
	Index    int    `yaml:"index"`
	Dims     [3]int `yaml:"dims,flow"`
}

type SchedulerConfig struct {
	FoldWorkers      int           `yaml:"fold_workers"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

type QueueConfig struct {
	Path string `yaml:"path"` // Empty: in-memory queue
}

type WireConfig struct {
	FloatOrder string `yaml:"float_order"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty: no HTTP endpoint
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           "127.0.0.1:7001",
			ConnectTimeout:    10 * time.Second,
			ReceiveTimeout:    30 * time.Second,
			ReconnectInterval: 5 * time.Second,
			IdleInterval:      time.Second,
		},
		Device: DeviceConfig{
			Backend: BackendOpenCL,
			Dims:    compute.DefaultDims,
		},
		Scheduler: SchedulerConfig{
			ProgressInterval: 5 * time.Second,
		},
		Wire: WireConfig{
			FloatOrder: string(wire.FloatNative),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their default
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("server.connect_timeout must be positive")
	}
	if c.Server.ReceiveTimeout < 0 {
		return fmt.Errorf("server.receive_timeout must not be negative")
	}
	if c.Server.ReconnectInterval <= 0 {
		return fmt.Errorf("server.reconnect_interval must be positive")
	}
	if c.Server.IdleInterval <= 0 {
		return fmt.Errorf("server.idle_interval must be positive")
	}

	switch c.Device.Backend {
	case BackendOpenCL, BackendCPU:
	default:
		return fmt.Errorf("device.backend must be %q or %q, got %q", BackendOpenCL, BackendCPU, c.Device.Backend)
	}
	for i, d := range c.Device.Dims {
		if d <= 0 {
			return fmt.Errorf("device.dims[%d] must be positive, got %d", i, d)
		}
	}
	if compute.DimsCapacity(c.Device.Dims) > 1<<31-1 {
		return fmt.Errorf("device.dims %v exceed the int32 index space", c.Device.Dims)
	}
	if c.Device.Platform < 0 || c.Device.Index < 0 {
		return fmt.Errorf("device.platform and device.index must not be negative")
	}

	if c.Scheduler.FoldWorkers < 0 {
		return fmt.Errorf("scheduler.fold_workers must not be negative")
	}
	if c.Scheduler.ProgressInterval <= 0 {
		return fmt.Errorf("scheduler.progress_interval must be positive")
	}

	if _, err := wire.ParseFloatOrder(c.Wire.FloatOrder); err != nil {
		return fmt.Errorf("wire.float_order: %w", err)
	}
	return nil
}
