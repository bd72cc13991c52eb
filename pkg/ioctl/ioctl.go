// Package ioctl packs and unpacks Windows I/O control codes and holds
// per-driver operation tables built from them.
package ioctl

import "fmt"

// Method is the buffer transfer method of a control code (2 bits).
type Method uint32

// Transfer methods, in CTL_CODE order.
const (
	Buffered Method = iota
	InDirect
	OutDirect
	Neither
)

func (m Method) String() string {
	switch m {
	case Buffered:
		return "buffered"
	case InDirect:
		return "in-direct"
	case OutDirect:
		return "out-direct"
	case Neither:
		return "neither"
	default:
		return fmt.Sprintf("method(%d)", uint32(m))
	}
}

// Access is the required access of a control code (2 bits).
type Access uint32

// Access modes.
const (
	Any Access = iota
	Read
	Write
)

func (a Access) String() string {
	switch a {
	case Any:
		return "any"
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("access(%d)", uint32(a))
	}
}

// Field limits of the packed layout.
const (
	MaxDeviceType uint32 = 0xFFFF
	MaxFunction   uint32 = 0xFFF
)

// Code is a packed 32-bit I/O control code.
type Code uint32

// Encode packs the tuple as (deviceType << 16) | (access << 14) | (function << 2) | method.
// Out of range fields are truncated; use Validate on the resulting tuple or
// build codes through a Table to have them checked.
func Encode(deviceType, function uint32, method Method, access Access) Code {
	return Code((deviceType&MaxDeviceType)<<16 |
		(uint32(access)&0x3)<<14 |
		(function&MaxFunction)<<2 |
		uint32(method)&0x3)
}

// Decode unpacks a control code into its constituent fields.
func Decode(c Code) (deviceType, function uint32, method Method, access Access) {
	return c.DeviceType(), c.Function(), c.Method(), c.Access()
}

// DeviceType returns bits 16-31.
func (c Code) DeviceType() uint32 { return uint32(c) >> 16 }

// Access returns bits 14-15.
func (c Code) Access() Access { return Access(uint32(c) >> 14 & 0x3) }

// Function returns bits 2-13.
func (c Code) Function() uint32 { return uint32(c) >> 2 & MaxFunction }

// Method returns bits 0-1.
func (c Code) Method() Method { return Method(uint32(c) & 0x3) }

func (c Code) String() string {
	return fmt.Sprintf("0x%08x", uint32(c))
}

// Validate reports whether the tuple can be encoded without truncation.
func Validate(deviceType, function uint32, method Method, access Access) error {
	if deviceType > MaxDeviceType {
		return fmt.Errorf("device type 0x%x exceeds 16 bits", deviceType)
	}
	if function > MaxFunction {
		return fmt.Errorf("function 0x%x exceeds 12 bits", function)
	}
	if method > Neither {
		return fmt.Errorf("invalid method %d", uint32(method))
	}
	if access > Write {
		return fmt.Errorf("invalid access %d", uint32(access))
	}
	return nil
}
