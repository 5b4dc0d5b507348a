package compute

import (
	"errors"
	"fmt"
)

// Device fault kinds. Every one of them is fatal to the process
var (
	ErrDeviceUnavailable = errors.New("compute: device not available")
	ErrContext           = errors.New("compute: context creation failed")
	ErrBuild             = errors.New("compute: program build failed")
	ErrKernelArgs        = errors.New("compute: kernel argument binding failed")
	ErrBuffer            = errors.New("compute: buffer operation failed")
	ErrEnqueue           = errors.New("compute: kernel execution failed")
)

// ErrNoKernel is a job-setup fault: the job asked to reuse a kernel but none was compiled yet
var ErrNoKernel = errors.New("compute: no previously compiled kernel to reuse")

// DeviceError describes a failed device API call
type DeviceError struct {
	Kind     error  // One of the Err* kinds above
	Op       string // API call or step that failed
	Code     int32  // Driver status code, 0 when not applicable
	BuildLog string // Compiler output for build failures
	Err      error  // Underlying error if any
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Op)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.BuildLog != "" {
		msg += "\nbuild log:\n" + e.BuildLog
	}
	return msg
}

// Unwrap lets errors.Is match both the kind and the cause
func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDeviceError builds a DeviceError for a failed call
func NewDeviceError(kind error, op string, code int32) *DeviceError {
	return &DeviceError{Kind: kind, Op: op, Code: code}
}

// IsFatal reports whether err is a device or job-setup fault
func IsFatal(err error) bool {
	var de *DeviceError
	return errors.As(err, &de) || errors.Is(err, ErrNoKernel) || errors.Is(err, ErrDeviceUnavailable)
}
