//go:build linux || darwin

// Package opencl runs job kernels on an OpenCL device.
//
// The OpenCL ICD loader is opened at runtime with purego, so the worker
// builds without cgo and starts on machines without a driver (Open then
// fails with compute.ErrDeviceUnavailable).
//
// Library locations tried:
//   - Linux: libOpenCL.so.1, libOpenCL.so
//   - macOS: the system OpenCL framework
package opencl

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/cuemby/keyforge/pkg/compute"
)

// OpenCL constants
const (
	clSuccess = 0

	clDeviceTypeAll = uint64(0xFFFFFFFF)

	clDeviceGlobalMemSize = 0x101F
	clDeviceName          = 0x102B
	clDeviceVendor        = 0x102C

	clProgramBuildLog = 0x1183

	clMemWriteOnly = uint64(1 << 1)
	clMemReadOnly  = uint64(1 << 2)

	clTrue = uint32(1)
)

var (
	clLib uintptr
	clMu  sync.Mutex
	clErr error

	clGetPlatformIDs          func(numEntries uint32, platforms *uintptr, numPlatforms *uint32) int32
	clGetDeviceIDs            func(platform uintptr, deviceType uint64, numEntries uint32, devices *uintptr, numDevices *uint32) int32
	clGetDeviceInfo           func(device uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clCreateContext           func(properties uintptr, numDevices uint32, devices *uintptr, notify uintptr, userData uintptr, errcode *int32) uintptr
	clCreateCommandQueue      func(context uintptr, device uintptr, properties uint64, errcode *int32) uintptr
	clCreateProgramWithSource func(context uintptr, count uint32, sources **byte, lengths *uintptr, errcode *int32) uintptr
	clBuildProgram            func(program uintptr, numDevices uint32, devices *uintptr, options *byte, notify uintptr, userData uintptr) int32
	clGetProgramBuildInfo     func(program uintptr, device uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clCreateKernel            func(program uintptr, name *byte, errcode *int32) uintptr
	clCreateBuffer            func(context uintptr, flags uint64, size uintptr, hostPtr unsafe.Pointer, errcode *int32) uintptr
	clSetKernelArg            func(kernel uintptr, index uint32, size uintptr, value unsafe.Pointer) int32
	clEnqueueWriteBuffer      func(queue uintptr, buffer uintptr, blocking uint32, offset uintptr, size uintptr, ptr unsafe.Pointer, numEvents uint32, waitList uintptr, event uintptr) int32
	clEnqueueReadBuffer       func(queue uintptr, buffer uintptr, blocking uint32, offset uintptr, size uintptr, ptr unsafe.Pointer, numEvents uint32, waitList uintptr, event uintptr) int32
	clEnqueueNDRangeKernel    func(queue uintptr, kernel uintptr, workDim uint32, globalOffset *uintptr, globalSize *uintptr, localSize *uintptr, numEvents uint32, waitList uintptr, event uintptr) int32
	clFinish                  func(queue uintptr) int32
	clReleaseMemObject        func(mem uintptr) int32
	clReleaseKernel           func(kernel uintptr) int32
	clReleaseProgram          func(program uintptr) int32
	clReleaseCommandQueue     func(queue uintptr) int32
	clReleaseContext          func(context uintptr) int32
)

func libraryPaths() []string {
	if runtime.GOOS == "darwin" {
		return []string{"/System/Library/Frameworks/OpenCL.framework/OpenCL"}
	}
	return []string{"libOpenCL.so.1", "libOpenCL.so"}
}

// load opens the ICD loader once and binds every entry point we use
func load() error {
	clMu.Lock()
	defer clMu.Unlock()

	if clLib != 0 {
		return nil
	}
	if clErr != nil {
		return clErr
	}

	var lastErr error
	for _, path := range libraryPaths() {
		lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := registerFunctions(lib); err != nil {
			lastErr = err
			continue
		}
		clLib = lib
		return nil
	}

	clErr = fmt.Errorf("%w: OpenCL library not found: %v", compute.ErrDeviceUnavailable, lastErr)
	return clErr
}

func registerFunctions(lib uintptr) (err error) {
	// RegisterLibFunc panics on a missing symbol
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("incomplete OpenCL library: %v", r)
		}
	}()

	purego.RegisterLibFunc(&clGetPlatformIDs, lib, "clGetPlatformIDs")
	purego.RegisterLibFunc(&clGetDeviceIDs, lib, "clGetDeviceIDs")
	purego.RegisterLibFunc(&clGetDeviceInfo, lib, "clGetDeviceInfo")
	purego.RegisterLibFunc(&clCreateContext, lib, "clCreateContext")
	purego.RegisterLibFunc(&clCreateCommandQueue, lib, "clCreateCommandQueue")
	purego.RegisterLibFunc(&clCreateProgramWithSource, lib, "clCreateProgramWithSource")
	purego.RegisterLibFunc(&clBuildProgram, lib, "clBuildProgram")
	purego.RegisterLibFunc(&clGetProgramBuildInfo, lib, "clGetProgramBuildInfo")
	purego.RegisterLibFunc(&clCreateKernel, lib, "clCreateKernel")
	purego.RegisterLibFunc(&clCreateBuffer, lib, "clCreateBuffer")
	purego.RegisterLibFunc(&clSetKernelArg, lib, "clSetKernelArg")
	purego.RegisterLibFunc(&clEnqueueWriteBuffer, lib, "clEnqueueWriteBuffer")
	purego.RegisterLibFunc(&clEnqueueReadBuffer, lib, "clEnqueueReadBuffer")
	purego.RegisterLibFunc(&clEnqueueNDRangeKernel, lib, "clEnqueueNDRangeKernel")
	purego.RegisterLibFunc(&clFinish, lib, "clFinish")
	purego.RegisterLibFunc(&clReleaseMemObject, lib, "clReleaseMemObject")
	purego.RegisterLibFunc(&clReleaseKernel, lib, "clReleaseKernel")
	purego.RegisterLibFunc(&clReleaseProgram, lib, "clReleaseProgram")
	purego.RegisterLibFunc(&clReleaseCommandQueue, lib, "clReleaseCommandQueue")
	purego.RegisterLibFunc(&clReleaseContext, lib, "clReleaseContext")
	return nil
}

// IsAvailable reports whether an OpenCL driver with at least one device is installed
func IsAvailable() bool {
	devices, err := Devices()
	return err == nil && len(devices) > 0
}

// DeviceInfo describes one OpenCL device
type DeviceInfo struct {
	Platform    int
	Index       int
	Name        string
	Vendor      string
	MemoryBytes uint64
	id          uintptr
}

func platformIDs() ([]uintptr, error) {
	var count uint32
	if code := clGetPlatformIDs(0, nil, &count); code != clSuccess || count == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms (code %d)", compute.ErrDeviceUnavailable, code)
	}
	ids := make([]uintptr, count)
	if code := clGetPlatformIDs(count, &ids[0], nil); code != clSuccess {
		return nil, compute.NewDeviceError(compute.ErrDeviceUnavailable, "clGetPlatformIDs", code)
	}
	return ids, nil
}

func deviceIDs(platform uintptr) []uintptr {
	var count uint32
	if code := clGetDeviceIDs(platform, clDeviceTypeAll, 0, nil, &count); code != clSuccess || count == 0 {
		return nil
	}
	ids := make([]uintptr, count)
	if code := clGetDeviceIDs(platform, clDeviceTypeAll, count, &ids[0], nil); code != clSuccess {
		return nil
	}
	return ids
}

func deviceString(device uintptr, param uint32) string {
	var buf [256]byte
	var size uintptr
	if code := clGetDeviceInfo(device, param, uintptr(len(buf)), unsafe.Pointer(&buf[0]), &size); code != clSuccess {
		return "unknown"
	}
	for i, b := range buf[:min(int(size), len(buf))] {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf[:min(int(size), len(buf))])
}

func deviceMemory(device uintptr) uint64 {
	var mem uint64
	if code := clGetDeviceInfo(device, clDeviceGlobalMemSize, unsafe.Sizeof(mem), unsafe.Pointer(&mem), nil); code != clSuccess {
		return 0
	}
	return mem
}

// Devices enumerates every device of every platform
func Devices() ([]DeviceInfo, error) {
	if err := load(); err != nil {
		return nil, err
	}
	platforms, err := platformIDs()
	if err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for p, platform := range platforms {
		for i, dev := range deviceIDs(platform) {
			out = append(out, DeviceInfo{
				Platform:    p,
				Index:       i,
				Name:        deviceString(dev, clDeviceName),
				Vendor:      deviceString(dev, clDeviceVendor),
				MemoryBytes: deviceMemory(dev),
				id:          dev,
			})
		}
	}
	return out, nil
}

func findDevice(platform, index int) (DeviceInfo, error) {
	devices, err := Devices()
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.Platform == platform && d.Index == index {
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: no device %d on platform %d", compute.ErrDeviceUnavailable, index, platform)
}

// cString returns a NUL-terminated copy of s
func cString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

var errNoDevice = errors.New("opencl: backend is closed")
