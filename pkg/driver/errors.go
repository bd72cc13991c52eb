package driver

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/mscrnt/ring0/pkg/ioctl"
)

// Platform error codes the controller classifies. The values are the Win32
// codes and are stable across Windows releases.
const (
	codeServiceDoesNotExist syscall.Errno = 1060
	codeServiceExists       syscall.Errno = 1073
)

var (
	// ErrServiceExists matches a ServiceError raised because the identity is
	// already registered with the service manager.
	ErrServiceExists = errors.New("service already exists")

	// ErrServiceNotFound matches a ServiceError raised because no service is
	// registered under the identity.
	ErrServiceNotFound = errors.New("service does not exist")

	// ErrUnsupported is returned by the platform backends on systems without
	// a Windows service manager.
	ErrUnsupported = errors.New("kernel drivers are not supported on this platform")
)

// ValidationError reports a malformed driver descriptor.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid driver descriptor: %s %s", e.Field, e.Reason)
}

// ServiceError reports a service manager failure. Code carries the platform
// error code when one is available.
type ServiceError struct {
	Op       string
	Identity string
	Code     syscall.Errno
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s %q failed (code 0x%x): %v", e.Op, e.Identity, uint32(e.Code), e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is maps the platform codes for "exists" and "missing" onto the package
// sentinels so callers can classify without knowing Win32 codes.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrServiceExists:
		return e.Code == codeServiceExists
	case ErrServiceNotFound:
		return e.Code == codeServiceDoesNotExist
	}
	return false
}

// DeviceError reports a failure at the device handle level.
type DeviceError struct {
	Op    string
	Path  string
	IOCTL ioctl.Code
	Code  syscall.Errno
	Err   error
}

func (e *DeviceError) Error() string {
	if e.Op == "io" {
		return fmt.Sprintf("device io %s on %s failed (code 0x%x): %v", e.IOCTL, e.Path, uint32(e.Code), e.Err)
	}
	return fmt.Sprintf("device %s %s failed (code 0x%x): %v", e.Op, e.Path, uint32(e.Code), e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ProtocolError reports a reply whose size does not match the wire format,
// which points at a driver/codec mismatch.
type ProtocolError struct {
	IOCTL ioctl.Code
	Want  int
	Got   int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ioctl %s: expected %d reply bytes, got %d", e.IOCTL, e.Want, e.Got)
}

// AlreadyOpenError is returned by Open on a channel that holds a handle.
type AlreadyOpenError struct {
	Path string
}

func (e *AlreadyOpenError) Error() string {
	return fmt.Sprintf("device %s already open", e.Path)
}

// NotOpenError is returned by channel operations that need a handle.
type NotOpenError struct {
	Op string
}

func (e *NotOpenError) Error() string {
	return fmt.Sprintf("device %s: channel not open", e.Op)
}

// errnoOf extracts the platform error code from err, or 0.
func errnoOf(err error) syscall.Errno {
	var no syscall.Errno
	if errors.As(err, &no) {
		return no
	}
	return 0
}
