package winring0

import (
	"testing"

	"github.com/mscrnt/ring0/pkg/ioctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsCodes(t *testing.T) {
	tests := []struct {
		op   string
		want ioctl.Code
	}{
		{OpGetDriverVersion, 0x9C402000},
		{OpGetRefCount, 0x9C402004},
		{OpReadMSR, 0x9C402084},
		{OpWriteMSR, 0x9C402088},
		{OpReadPMC, 0x9C40208C},
		{OpHalt, 0x9C402090},
		{OpReadIOPort, 0x9C4060C4},
		{OpWriteIOPort, 0x9C40A0C8},
		{OpReadIOPortByte, 0x9C4060CC},
		{OpWriteIOPortDword, 0x9C40A0E0},
		{OpReadMemory, 0x9C406104},
		{OpWriteMemory, 0x9C40A108},
		{OpReadPCIConfig, 0x9C406144},
		{OpWritePCIConfig, 0x9C40A148},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, ok := Ops.Code(tt.op)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpsTableIsConsistent(t *testing.T) {
	require.NoError(t, Ops.Validate())
	assert.Equal(t, DeviceType, Ops.DeviceType())
	assert.Len(t, Ops.Ops(), 18)

	for _, op := range Ops.Ops() {
		code, ok := Ops.Code(op.Name)
		require.True(t, ok)
		back, ok := Ops.Lookup(code)
		require.True(t, ok)
		assert.Equal(t, op, back)
		assert.Equal(t, ioctl.Buffered, code.Method())
	}
}

func TestBinariesSelect(t *testing.T) {
	b := Binaries{X64: "x64.sys", X86: "x86.sys"}

	tests := []struct {
		arch    string
		want    string
		wantErr bool
	}{
		{"amd64", "x64.sys", false},
		{"arm64", "x64.sys", false},
		{"386", "x86.sys", false},
		{"riscv64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			got, err := b.Select(tt.arch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Binaries{X64: "x64.sys"}.Select("386")
	assert.Error(t, err, "unconfigured image")
}
