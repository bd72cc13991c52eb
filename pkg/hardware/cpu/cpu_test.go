package cpu

import (
	"errors"
	"testing"
	"time"

	"github.com/mscrnt/ring0/pkg/msr"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFacts struct {
	f   Facts
	err error
}

func (s staticFacts) Facts() (Facts, error) { return s.f, s.err }

type registers struct {
	values map[uint32]uint64
	fail   map[uint32]error
	reads  []uint32
}

func (r *registers) ReadMSR(index uint32) (uint64, error) {
	r.reads = append(r.reads, index)
	if err := r.fail[index]; err != nil {
		return 0, err
	}
	return r.values[index], nil
}

var intelFacts = Facts{
	Vendor:       "GenuineIntel",
	Family:       6,
	Model:        158,
	Brand:        "Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz",
	LogicalCores: 12,
}

func detectIntel(t *testing.T) *intel {
	t.Helper()
	log, _ := test.NewNullLogger()
	c, err := Detect(staticFacts{f: intelFacts}, log)
	require.NoError(t, err)
	impl, ok := c.(*intel)
	require.True(t, ok)
	impl.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return impl
}

func TestDetect(t *testing.T) {
	log, _ := test.NewNullLogger()

	tests := []struct {
		name      string
		vendor    string
		wantKnown bool
		wantErr   bool
	}{
		{"intel", "GenuineIntel", true, false},
		{"amd", "AuthenticAMD", true, true},
		{"unknown", "CyrixInstead", false, true},
		{"empty", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Detect(staticFacts{f: Facts{Vendor: tt.vendor, LogicalCores: 4}}, log)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, 4, c.Cores())
				return
			}
			var verr *UnsupportedVendorError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.vendor, verr.Vendor)
			assert.Equal(t, tt.wantKnown, verr.Known)
			assert.Nil(t, c)
		})
	}
}

func TestDetectFactFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	boom := errors.New("boom")

	_, err := Detect(staticFacts{err: boom}, log)
	assert.ErrorIs(t, err, boom)
}

func TestIntelTemperature(t *testing.T) {
	c := detectIntel(t)
	regs := &registers{values: map[uint32]uint64{
		msr.TemperatureTarget:  0xFFFFFFFF_00640000, // high half ignored
		msr.PackageThermStatus: 0x882A0000,          // readout 42
	}}
	c.Bind(regs)

	require.NoError(t, c.Update(Temperature))

	rec := c.Record()
	assert.Equal(t, 100, rec.TjMax)
	assert.Equal(t, 58, rec.PackageTemp)
	assert.Equal(t, []uint32{msr.TemperatureTarget, msr.PackageThermStatus}, regs.reads)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestIntelFrequency(t *testing.T) {
	c := detectIntel(t)
	regs := &registers{values: map[uint32]uint64{
		msr.PerfStatus: 0x2A00,
	}}
	c.Bind(regs)

	require.NoError(t, c.Update(Frequency))

	rec := c.Record()
	assert.Equal(t, 42, rec.Ratio)
	assert.Equal(t, 4200, rec.FrequencyMHz)
	assert.Equal(t, []uint32{msr.PerfStatus}, regs.reads)
}

func TestIntelAll(t *testing.T) {
	c := detectIntel(t)
	regs := &registers{values: map[uint32]uint64{
		msr.TemperatureTarget:  0x00830000,
		msr.PackageThermStatus: 0x00300000,
		msr.PerfStatus:         0x1F00,
	}}
	c.Bind(regs)

	require.NoError(t, c.Update(All))

	rec := c.Record()
	assert.Equal(t, 0x83, rec.TjMax)
	assert.Equal(t, 0x83-0x30, rec.PackageTemp)
	assert.Equal(t, 3100, rec.FrequencyMHz)
	assert.Equal(t, "GenuineIntel", rec.Vendor)
	assert.Equal(t, 12, rec.Cores)
}

func TestIntelLoadIsNoOp(t *testing.T) {
	c := detectIntel(t)

	require.NoError(t, c.Update(Load), "load needs no reader")

	regs := &registers{}
	c.Bind(regs)
	require.NoError(t, c.Update(Load))
	assert.Empty(t, regs.reads)
	assert.True(t, c.Record().UpdatedAt.IsZero())
}

func TestIntelUnbound(t *testing.T) {
	c := detectIntel(t)

	for _, k := range []Kind{Temperature, Frequency, All} {
		assert.ErrorIs(t, c.Update(k), ErrNotBound, k.String())
	}
}

func TestIntelReadFailure(t *testing.T) {
	c := detectIntel(t)
	denied := errors.New("access denied")
	regs := &registers{
		values: map[uint32]uint64{msr.TemperatureTarget: 0x00640000},
		fail:   map[uint32]error{msr.PackageThermStatus: denied},
	}
	c.Bind(regs)

	err := c.Update(Temperature)
	assert.ErrorIs(t, err, denied)
	assert.Zero(t, c.Record().PackageTemp)
	assert.True(t, c.Record().UpdatedAt.IsZero())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Frequency, Temperature, Load, All} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind("Temperature")
	require.NoError(t, err)
	assert.Equal(t, Temperature, got)

	_, err = ParseKind("voltage")
	assert.Error(t, err)
}
