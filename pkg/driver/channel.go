package driver

import (
	"encoding/binary"

	"github.com/mscrnt/ring0/pkg/ioctl"
	"github.com/sirupsen/logrus"
)

// DevicePrefix is prepended to a service identity to address its device node.
const DevicePrefix = `\\.\`

// Wire sizes of one control request and its reply.
const (
	RequestSize  = 4
	ResponseSize = 8
)

// Device opens handles to device nodes.
type Device interface {
	Open(path string) (Handle, error)
}

// Handle is an open device node. Control sends in and fills out, returning
// the number of bytes the driver wrote to out.
type Handle interface {
	Control(code uint32, in, out []byte) (int, error)
	Close() error
}

// DevicePath returns the device node path for a driver identity.
func DevicePath(identity string) string {
	return DevicePrefix + identity
}

// Channel owns at most one open handle to a driver's device node and issues
// fixed-size control requests over it. A Channel is not safe for
// concurrent use; callers serialize access.
type Channel struct {
	dev    Device
	handle Handle
	path   string
	log    logrus.FieldLogger
}

// NewChannel returns a closed channel backed by the platform device layer.
func NewChannel(log logrus.FieldLogger) *Channel {
	return NewChannelWith(platformDevice(), log)
}

// NewChannelWith returns a closed channel backed by dev.
func NewChannelWith(dev Device, log logrus.FieldLogger) *Channel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Channel{dev: dev, log: log}
}

// IsOpen reports whether the channel holds a handle.
func (c *Channel) IsOpen() bool {
	return c.handle != nil
}

// Path returns the device path of the open handle, or "".
func (c *Channel) Path() string {
	return c.path
}

// Open acquires a read/write handle to the device node of identity.
func (c *Channel) Open(identity string) error {
	if c.handle != nil {
		return &AlreadyOpenError{Path: c.path}
	}

	path := DevicePath(identity)
	h, err := c.dev.Open(path)
	if err != nil {
		return &DeviceError{Op: "open", Path: path, Code: errnoOf(err), Err: err}
	}

	c.handle = h
	c.path = path
	c.log.WithField("device", path).Debug("Device opened")
	return nil
}

// Close releases the handle. The channel is closed afterwards even if the
// release itself fails; that failure is logged rather than returned.
func (c *Channel) Close() error {
	if c.handle == nil {
		return &NotOpenError{Op: "close"}
	}

	h, path := c.handle, c.path
	c.handle, c.path = nil, ""

	if err := h.Close(); err != nil {
		c.log.WithField("device", path).WithError(err).Warn("Failed to release device handle")
		return nil
	}
	c.log.WithField("device", path).Debug("Device closed")
	return nil
}

// IO sends input as 4 big-endian bytes under code and decodes the 8 byte
// little-endian reply. There is no retry.
func (c *Channel) IO(code ioctl.Code, input uint32) (uint64, error) {
	if c.handle == nil {
		return 0, &NotOpenError{Op: "io"}
	}

	var in [RequestSize]byte
	var out [ResponseSize]byte
	binary.BigEndian.PutUint32(in[:], input)

	n, err := c.handle.Control(uint32(code), in[:], out[:])
	if err != nil {
		return 0, &DeviceError{Op: "io", Path: c.path, IOCTL: code, Code: errnoOf(err), Err: err}
	}
	if n != ResponseSize {
		return 0, &ProtocolError{IOCTL: code, Want: ResponseSize, Got: n}
	}

	value := binary.LittleEndian.Uint64(out[:])
	c.log.WithFields(logrus.Fields{
		"ioctl": code,
		"input": input,
	}).Tracef("Device replied 0x%016x", value)
	return value, nil
}
