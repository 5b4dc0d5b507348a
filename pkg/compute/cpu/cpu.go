// Package cpu evaluates kernels on the host. Kernels are Go functions
// registered under the entry-point name a job's source declares, which lets
// the worker run without an accelerator and gives tests a deterministic device
package cpu

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/log"
	"github.com/cuemby/keyforge/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// KernelFunc scores one candidate index against the job key
type KernelFunc func(key []byte, index int32) float32

var (
	registryMu sync.RWMutex
	registry   = map[string]KernelFunc{
		"identity": identityKernel,
		"hamming":  hammingKernel,
	}
)

// Register makes fn available to jobs whose source declares `__kernel void name(`
func Register(name string, fn KernelFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

func lookup(name string) (KernelFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Registered returns the sorted names of all registered kernels
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func identityKernel(_ []byte, index int32) float32 {
	return float32(index)
}

// hammingKernel counts the bits of the index that match the first key word
func hammingKernel(key []byte, index int32) float32 {
	var word [4]byte
	copy(word[:], key)
	target := binary.BigEndian.Uint32(word[:])
	return float32(32 - bits.OnesCount32(target^uint32(index)))
}

// Options configures the CPU backend
type Options struct {
	Dims    [3]int // Dispatch cube; its product is the capacity
	Workers int    // Parallel evaluators, defaults to GOMAXPROCS
}

// Backend runs registered kernels on the host
type Backend struct {
	capacity int
	workers  int
	cache    compute.KernelCache
	kernel   KernelFunc
	entry    string
	key      []byte
	out      []float32
	logger   zerolog.Logger
}

// New creates a CPU backend
func New(opts Options) (*Backend, error) {
	if opts.Dims == [3]int{} {
		opts.Dims = compute.DefaultDims
	}
	capacity := compute.DimsCapacity(opts.Dims)
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid dispatch dims %v", opts.Dims)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Backend{
		capacity: capacity,
		workers:  opts.Workers,
		out:      make([]float32, capacity),
		logger:   log.WithComponent("cpu"),
	}, nil
}

// Name returns the device identity
func (b *Backend) Name() string {
	return fmt.Sprintf("cpu-%d", b.workers)
}

// Capacity returns the sub-batch size
func (b *Backend) Capacity() int {
	return b.capacity
}

// Prepare resolves the job's kernel and copies its key
func (b *Backend) Prepare(job *types.Job) error {
	source, needBuild, err := b.cache.Resolve(job)
	if err != nil {
		return err
	}
	if needBuild {
		if err := b.build(source); err != nil {
			return err
		}
		b.cache.Commit(source)
		b.logger.Info().Str("kernel", b.entry).Msg("Kernel compiled")
	}
	b.key = append(b.key[:0], job.Key...)
	return nil
}

func (b *Backend) build(source string) error {
	entry, ok := compute.EntryPoint(source)
	if !ok {
		return &compute.DeviceError{
			Kind:     compute.ErrBuild,
			Op:       "compile",
			BuildLog: "no __kernel entry point found in source",
		}
	}
	fn, ok := lookup(entry)
	if !ok {
		return &compute.DeviceError{
			Kind:     compute.ErrBuild,
			Op:       "compile",
			BuildLog: fmt.Sprintf("kernel %q is not registered (available: %s)", entry, strings.Join(Registered(), ", ")),
		}
	}
	b.kernel = fn
	b.entry = entry
	return nil
}

// Evaluate scores [start, start+length). The returned slice is reused by the next call.
// Only the logical range is computed; indices past it would be discarded anyway
func (b *Backend) Evaluate(start, length int) ([]float32, error) {
	if b.kernel == nil {
		return nil, compute.NewDeviceError(compute.ErrKernelArgs, "bind kernel: no kernel prepared", 0)
	}
	if length < 0 || length > b.capacity {
		return nil, compute.NewDeviceError(compute.ErrEnqueue, fmt.Sprintf("dispatch length %d outside capacity %d", length, b.capacity), 0)
	}

	out := b.out[:length]
	chunk := (length + b.workers - 1) / b.workers
	if chunk == 0 {
		return out, nil
	}

	var g errgroup.Group
	for lo := 0; lo < length; lo += chunk {
		hi := min(lo+chunk, length)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				out[i] = b.kernel(b.key, int32(start+i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases host buffers
func (b *Backend) Close() error {
	b.out = nil
	b.kernel = nil
	b.cache.Invalidate()
	return nil
}
