// Package msr names x86 model-specific registers and decodes their values.
// It knows nothing about how a register is read.
package msr

// Register indices.
const (
	PlatformInfo       uint32 = 0xCE
	PerfStatus         uint32 = 0x198 // IA32_PERF_STATUS
	ThermStatus        uint32 = 0x19C // IA32_THERM_STATUS
	TemperatureTarget  uint32 = 0x1A2 // MSR_TEMPERATURE_TARGET
	PackageThermStatus uint32 = 0x1B1 // IA32_PACKAGE_THERM_STATUS
)

// Low returns bits 0-31 (EAX).
func Low(v uint64) uint32 {
	return uint32(v & 0xFFFFFFFF)
}

// High returns bits 32-63 (EDX).
func High(v uint64) uint32 {
	return uint32(v >> 32)
}

// Extract returns width bits of v starting at shift.
func Extract(v uint64, shift, width uint) uint64 {
	if width == 0 || shift >= 64 {
		return 0
	}
	if width >= 64 {
		return v >> shift
	}
	return (v >> shift) & (1<<width - 1)
}
