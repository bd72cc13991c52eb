package winring0

import "github.com/mscrnt/ring0/pkg/ioctl"

// DeviceType is the device type the WinRing0 driver registers its codes under.
const DeviceType uint32 = 40000

// Operation names.
const (
	OpGetDriverVersion = "GET_DRIVER_VERSION"
	OpGetRefCount      = "GET_REFCOUNT"
	OpReadMSR          = "READ_MSR"
	OpWriteMSR         = "WRITE_MSR"
	OpReadPMC          = "READ_PMC"
	OpHalt             = "HALT"
	OpReadIOPort       = "READ_IO_PORT"
	OpWriteIOPort      = "WRITE_IO_PORT"
	OpReadIOPortByte   = "READ_IO_PORT_BYTE"
	OpReadIOPortWord   = "READ_IO_PORT_WORD"
	OpReadIOPortDword  = "READ_IO_PORT_DWORD"
	OpWriteIOPortByte  = "WRITE_IO_PORT_BYTE"
	OpWriteIOPortWord  = "WRITE_IO_PORT_WORD"
	OpWriteIOPortDword = "WRITE_IO_PORT_DWORD"
	OpReadMemory       = "READ_MEMORY"
	OpWriteMemory      = "WRITE_MEMORY"
	OpReadPCIConfig    = "READ_PCI_CONFIG"
	OpWritePCIConfig   = "WRITE_PCI_CONFIG"
)

// Ops is the driver's operation table, matching OlsIoctl.h.
var Ops = ioctl.MustTable(DeviceType,
	ioctl.Op{Name: OpGetDriverVersion, Function: 0x800, Method: ioctl.Buffered, Access: ioctl.Any},
	ioctl.Op{Name: OpGetRefCount, Function: 0x801, Method: ioctl.Buffered, Access: ioctl.Any},
	ioctl.Op{Name: OpReadMSR, Function: 0x821, Method: ioctl.Buffered, Access: ioctl.Any},
	ioctl.Op{Name: OpWriteMSR, Function: 0x822, Method: ioctl.Buffered, Access: ioctl.Any},
	ioctl.Op{Name: OpReadPMC, Function: 0x823, Method: ioctl.Buffered, Access: ioctl.Any},
	ioctl.Op{Name: OpHalt, Function: 0x824, Method: ioctl.Buffered, Access: ioctl.Any},
	ioctl.Op{Name: OpReadIOPort, Function: 0x831, Method: ioctl.Buffered, Access: ioctl.Read},
	ioctl.Op{Name: OpWriteIOPort, Function: 0x832, Method: ioctl.Buffered, Access: ioctl.Write},
	ioctl.Op{Name: OpReadIOPortByte, Function: 0x833, Method: ioctl.Buffered, Access: ioctl.Read},
	ioctl.Op{Name: OpReadIOPortWord, Function: 0x834, Method: ioctl.Buffered, Access: ioctl.Read},
	ioctl.Op{Name: OpReadIOPortDword, Function: 0x835, Method: ioctl.Buffered, Access: ioctl.Read},
	ioctl.Op{Name: OpWriteIOPortByte, Function: 0x836, Method: ioctl.Buffered, Access: ioctl.Write},
	ioctl.Op{Name: OpWriteIOPortWord, Function: 0x837, Method: ioctl.Buffered, Access: ioctl.Write},
	ioctl.Op{Name: OpWriteIOPortDword, Function: 0x838, Method: ioctl.Buffered, Access: ioctl.Write},
	ioctl.Op{Name: OpReadMemory, Function: 0x841, Method: ioctl.Buffered, Access: ioctl.Read},
	ioctl.Op{Name: OpWriteMemory, Function: 0x842, Method: ioctl.Buffered, Access: ioctl.Write},
	ioctl.Op{Name: OpReadPCIConfig, Function: 0x851, Method: ioctl.Buffered, Access: ioctl.Read},
	ioctl.Op{Name: OpWritePCIConfig, Function: 0x852, Method: ioctl.Buffered, Access: ioctl.Write},
)
