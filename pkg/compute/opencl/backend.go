//go:build linux || darwin

package opencl

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/log"
	"github.com/cuemby/keyforge/pkg/types"
)

// Options selects the device and dispatch shape
type Options struct {
	Platform     int
	Device       int
	Dims         [3]int // Global work size; product is the sub-batch capacity
	BuildOptions string
}

// Backend owns one OpenCL context, command queue, program and buffers
type Backend struct {
	info     DeviceInfo
	dims     [3]int
	capacity int
	options  string

	context uintptr
	queue   uintptr
	program uintptr
	kernel  uintptr
	keyBuf  uintptr
	keySize int
	outBuf  uintptr
	out     []float32

	cache  compute.KernelCache
	logger zerolog.Logger
}

// Open creates the device context, command queue and score buffer
func Open(opts Options) (*Backend, error) {
	if opts.Dims == [3]int{} {
		opts.Dims = compute.DefaultDims
	}
	capacity := compute.DimsCapacity(opts.Dims)
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid dispatch dims %v", opts.Dims)
	}

	info, err := findDevice(opts.Platform, opts.Device)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		info:     info,
		dims:     opts.Dims,
		capacity: capacity,
		options:  opts.BuildOptions,
		out:      make([]float32, capacity),
		logger:   log.WithComponent("opencl").With().Str("device", info.Name).Logger(),
	}

	var code int32
	dev := info.id
	b.context = clCreateContext(0, 1, &dev, 0, 0, &code)
	if code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrContext, "clCreateContext", code)
	}

	b.queue = clCreateCommandQueue(b.context, dev, 0, &code)
	if code != clSuccess {
		b.Close()
		return nil, compute.NewDeviceError(compute.ErrContext, "clCreateCommandQueue", code)
	}

	b.outBuf = clCreateBuffer(b.context, clMemWriteOnly, uintptr(capacity*4), nil, &code)
	if code != clSuccess {
		b.Close()
		return nil, compute.NewDeviceError(compute.ErrBuffer, "clCreateBuffer(scores)", code)
	}

	b.logger.Info().
		Str("vendor", info.Vendor).
		Uint64("memory_mb", info.MemoryBytes/(1024*1024)).
		Int("capacity", capacity).
		Msg("OpenCL device opened")
	return b, nil
}

// Name returns the device name
func (b *Backend) Name() string {
	return b.info.Name
}

// Capacity returns the sub-batch size
func (b *Backend) Capacity() int {
	return b.capacity
}

// Prepare builds the job's program when its source changed and uploads the key
func (b *Backend) Prepare(job *types.Job) error {
	if b.context == 0 {
		return errNoDevice
	}
	source, needBuild, err := b.cache.Resolve(job)
	if err != nil {
		return err
	}
	if needBuild {
		if err := b.build(source); err != nil {
			return err
		}
		b.cache.Commit(source)
	}
	return b.uploadKey(job.Key)
}

func (b *Backend) build(source string) error {
	entry, ok := compute.EntryPoint(source)
	if !ok {
		return &compute.DeviceError{Kind: compute.ErrBuild, Op: "locate entry point", BuildLog: "no __kernel entry point found in source"}
	}

	src := []byte(source)
	srcPtr := &src[0]
	srcLen := uintptr(len(src))
	options := cString(b.options)

	var pinner runtime.Pinner
	pinner.Pin(srcPtr)
	defer pinner.Unpin()

	var code int32
	program := clCreateProgramWithSource(b.context, 1, &srcPtr, &srcLen, &code)
	if code != clSuccess {
		return compute.NewDeviceError(compute.ErrBuild, "clCreateProgramWithSource", code)
	}

	dev := b.info.id
	if code := clBuildProgram(program, 1, &dev, &options[0], 0, 0); code != clSuccess {
		buildLog := b.buildLog(program)
		clReleaseProgram(program)
		b.logger.Error().Int32("code", code).Str("kernel", entry).Str("build_log", buildLog).Msg("Program build failed")
		return &compute.DeviceError{Kind: compute.ErrBuild, Op: "clBuildProgram", Code: code, BuildLog: buildLog}
	}

	name := cString(entry)
	kernel := clCreateKernel(program, &name[0], &code)
	if code != clSuccess {
		clReleaseProgram(program)
		return compute.NewDeviceError(compute.ErrBuild, "clCreateKernel("+entry+")", code)
	}

	b.releaseProgram()
	b.program = program
	b.kernel = kernel
	b.logger.Info().Str("kernel", entry).Int("source_bytes", len(source)).Msg("Kernel compiled")
	return nil
}

func (b *Backend) buildLog(program uintptr) string {
	var size uintptr
	if clGetProgramBuildInfo(program, b.info.id, clProgramBuildLog, 0, nil, &size) != clSuccess || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	if clGetProgramBuildInfo(program, b.info.id, clProgramBuildLog, size, unsafe.Pointer(&buf[0]), nil) != clSuccess {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

// uploadKey reuses the key buffer when the size matches, otherwise reallocates it
func (b *Backend) uploadKey(key []byte) error {
	size := max(len(key), 1)
	var code int32
	if b.keyBuf == 0 || b.keySize != size {
		if b.keyBuf != 0 {
			clReleaseMemObject(b.keyBuf)
			b.keyBuf = 0
		}
		b.keyBuf = clCreateBuffer(b.context, clMemReadOnly, uintptr(size), nil, &code)
		if code != clSuccess {
			b.keyBuf = 0
			return compute.NewDeviceError(compute.ErrBuffer, "clCreateBuffer(key)", code)
		}
		b.keySize = size
	}
	if len(key) == 0 {
		return nil
	}
	if code := clEnqueueWriteBuffer(b.queue, b.keyBuf, clTrue, 0, uintptr(len(key)), unsafe.Pointer(&key[0]), 0, 0, 0); code != clSuccess {
		return compute.NewDeviceError(compute.ErrBuffer, "clEnqueueWriteBuffer(key)", code)
	}
	return nil
}

// Evaluate dispatches the full capacity cube and reads back the first length scores.
// Kernels must bounds-check indices past the logical end of the key space
func (b *Backend) Evaluate(start, length int) ([]float32, error) {
	if b.kernel == 0 {
		return nil, compute.NewDeviceError(compute.ErrKernelArgs, "bind kernel: no kernel prepared", 0)
	}
	if length < 0 || length > b.capacity {
		return nil, compute.NewDeviceError(compute.ErrEnqueue, fmt.Sprintf("dispatch length %d outside capacity %d", length, b.capacity), 0)
	}

	offset := int32(start)
	if code := clSetKernelArg(b.kernel, 0, unsafe.Sizeof(b.keyBuf), unsafe.Pointer(&b.keyBuf)); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrKernelArgs, "clSetKernelArg(key)", code)
	}
	if code := clSetKernelArg(b.kernel, 1, unsafe.Sizeof(b.outBuf), unsafe.Pointer(&b.outBuf)); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrKernelArgs, "clSetKernelArg(scores)", code)
	}
	if code := clSetKernelArg(b.kernel, 2, unsafe.Sizeof(offset), unsafe.Pointer(&offset)); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrKernelArgs, "clSetKernelArg(offset)", code)
	}

	global := [3]uintptr{uintptr(b.dims[0]), uintptr(b.dims[1]), uintptr(b.dims[2])}
	if code := clEnqueueNDRangeKernel(b.queue, b.kernel, 3, nil, &global[0], nil, 0, 0, 0); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrEnqueue, "clEnqueueNDRangeKernel", code)
	}
	if code := clFinish(b.queue); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrEnqueue, "clFinish", code)
	}

	out := b.out[:length]
	if length == 0 {
		return out, nil
	}
	if code := clEnqueueReadBuffer(b.queue, b.outBuf, clTrue, 0, uintptr(length*4), unsafe.Pointer(&out[0]), 0, 0, 0); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrBuffer, "clEnqueueReadBuffer(scores)", code)
	}
	return out, nil
}

func (b *Backend) releaseProgram() {
	if b.kernel != 0 {
		clReleaseKernel(b.kernel)
		b.kernel = 0
	}
	if b.program != 0 {
		clReleaseProgram(b.program)
		b.program = 0
	}
}

// Close releases buffers, program, queue and context in reverse creation order
func (b *Backend) Close() error {
	b.releaseProgram()
	if b.keyBuf != 0 {
		clReleaseMemObject(b.keyBuf)
		b.keyBuf = 0
	}
	if b.outBuf != 0 {
		clReleaseMemObject(b.outBuf)
		b.outBuf = 0
	}
	if b.queue != 0 {
		clReleaseCommandQueue(b.queue)
		b.queue = 0
	}
	if b.context != 0 {
		clReleaseContext(b.context)
		b.context = 0
	}
	b.cache.Invalidate()
	return nil
}
