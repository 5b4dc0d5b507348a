//go:build !linux && !darwin

// Package opencl runs job kernels on an OpenCL device. This platform has no
// runtime loader support, so every entry point reports the device as unavailable
package opencl

import (
	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/types"
)

// Options selects the device and dispatch shape
type Options struct {
	Platform     int
	Device       int
	Dims         [3]int
	BuildOptions string
}

// DeviceInfo describes one OpenCL device
type DeviceInfo struct {
	Platform    int
	Index       int
	Name        string
	Vendor      string
	MemoryBytes uint64
}

// Backend is never constructed on this platform
type Backend struct{}

// IsAvailable always reports false here
func IsAvailable() bool { return false }

// Devices always fails here
func Devices() ([]DeviceInfo, error) { return nil, compute.ErrDeviceUnavailable }

// Open always fails here
func Open(Options) (*Backend, error) { return nil, compute.ErrDeviceUnavailable }

func (b *Backend) Name() string                         { return "unavailable" }
func (b *Backend) Capacity() int                        { return 0 }
func (b *Backend) Prepare(*types.Job) error             { return compute.ErrDeviceUnavailable }
func (b *Backend) Evaluate(int, int) ([]float32, error) { return nil, compute.ErrDeviceUnavailable }
func (b *Backend) Close() error                         { return nil }
