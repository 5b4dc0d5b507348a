// Package compute defines the device backend contract used by the batch
// scheduler, along with the kernel cache and device fault types shared by
// the OpenCL and CPU implementations
package compute

import (
	"regexp"

	"github.com/cuemby/keyforge/pkg/types"
)

// DefaultDims is the fixed dispatch cube. Its product is the sub-batch capacity
var DefaultDims = [3]int{256, 256, 256}

// Backend owns one device execution context.
// Calls are made from a single goroutine; implementations need no locking
// beyond what their own fan-out requires
type Backend interface {
	// Name identifies the device, e.g. for the handshake identity
	Name() string

	// Capacity is the number of candidates evaluated per dispatch
	Capacity() int

	// Prepare compiles or reuses the job's kernel and uploads its key
	Prepare(job *types.Job) error

	// Evaluate scores candidates [start, start+length) and returns exactly length scores
	Evaluate(start, length int) ([]float32, error)

	// Close releases the device context
	Close() error
}

// DimsCapacity returns the number of work items in a dispatch cube
func DimsCapacity(dims [3]int) int {
	return dims[0] * dims[1] * dims[2]
}

var entryPointRe = regexp.MustCompile(`__kernel\s+void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// EntryPoint returns the name of the first kernel function declared in src
func EntryPoint(src string) (string, bool) {
	m := entryPointRe.FindStringSubmatch(src)
	if m == nil {
		return "", false
	}
	return m[1], true
}
