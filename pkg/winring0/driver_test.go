package winring0_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mscrnt/ring0/pkg/driver"
	"github.com/mscrnt/ring0/pkg/driver/drivertest"
	"github.com/mscrnt/ring0/pkg/msr"
	"github.com/mscrnt/ring0/pkg/winring0"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg *drivertest.Registry
	dev *drivertest.Device
	drv *winring0.Driver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()

	desc, err := driver.NewBuilder(winring0.Identity).
		Description(winring0.Description).
		DeviceType(winring0.DeviceType).
		Binary([]byte("MZ fake driver image")).
		StageDir(t.TempDir()).
		Build()
	require.NoError(t, err)

	reg := drivertest.NewRegistry()
	dev := &drivertest.Device{
		Registry:  reg,
		Registers: map[uint32]uint64{msr.TemperatureTarget: 0x00830000},
	}
	drv := winring0.New(desc,
		driver.NewServicesWith(reg.Connect, log),
		driver.NewChannelWith(dev, log),
		log)
	return &fixture{reg: reg, dev: dev, drv: drv}
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.drv.Install())
	rec := f.reg.Services[winring0.Identity]
	require.NotNil(t, rec)
	assert.Equal(t, driver.Running, rec.State)
	assert.Equal(t, winring0.Identity+".sys", filepath.Base(rec.BinaryPath))

	require.NoError(t, f.drv.Open())
	assert.True(t, f.drv.IsOpen())

	v, err := f.drv.ReadMSR(msr.TemperatureTarget)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x00830000), v)
	assert.Equal(t, uint64(0x83), msr.Extract(uint64(msr.Low(v)), 16, 8))

	require.Len(t, f.dev.Requests, 1)
	assert.Equal(t, uint32(0x9C402084), f.dev.Requests[0].Code)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xA2}, f.dev.Requests[0].Raw)

	require.NoError(t, f.drv.Close())
	require.NoError(t, f.drv.Uninstall())
	assert.Empty(t, f.reg.Services)
}

func TestOutOfOrderSteps(t *testing.T) {
	t.Run("io before open", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.drv.Install())

		_, err := f.drv.ReadMSR(msr.TemperatureTarget)
		var nerr *driver.NotOpenError
		assert.True(t, errors.As(err, &nerr), "got %v", err)
		assert.Contains(t, err.Error(), "0x1a2")
		assert.Empty(t, f.dev.Requests)
	})

	t.Run("open before install", func(t *testing.T) {
		f := newFixture(t)

		err := f.drv.Open()
		var derr *driver.DeviceError
		require.True(t, errors.As(err, &derr), "got %v", err)
		assert.Equal(t, drivertest.ErrFileNotFound, derr.Code)
	})

	t.Run("uninstall before install", func(t *testing.T) {
		f := newFixture(t)

		err := f.drv.Uninstall()
		var serr *driver.ServiceError
		require.True(t, errors.As(err, &serr), "got %v", err)
		assert.Equal(t, "open", serr.Op)
		assert.True(t, errors.Is(err, driver.ErrServiceNotFound))
	})

	t.Run("uninstall before close", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.drv.Install())
		require.NoError(t, f.drv.Open())

		err := f.drv.Uninstall()
		var serr *driver.ServiceError
		require.True(t, errors.As(err, &serr), "got %v", err)
		assert.Equal(t, "stop", serr.Op)
		assert.Equal(t, drivertest.ErrInvalidServiceControl, serr.Code)
		assert.True(t, f.drv.IsOpen())
	})

	t.Run("close before open", func(t *testing.T) {
		f := newFixture(t)

		var nerr *driver.NotOpenError
		assert.True(t, errors.As(f.drv.Close(), &nerr))
	})
}

func TestIOByName(t *testing.T) {
	f := newFixture(t)
	f.dev.Handler = func(code, input uint32) (uint64, error) {
		if code == 0x9C402000 {
			return 0x01020000, nil
		}
		return 0, drivertest.ErrInvalidFunction
	}
	require.NoError(t, f.drv.Start(false))
	defer f.drv.Stop()

	v, err := f.drv.IO(winring0.OpGetDriverVersion, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x01020000), v)

	_, err = f.drv.IO("NOT_AN_OP", 0)
	assert.Error(t, err)
	assert.Len(t, f.dev.Requests, 1)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.drv.Start(false))
	assert.True(t, f.drv.IsOpen())
	assert.True(t, f.reg.Running(winring0.Identity))

	require.NoError(t, f.drv.Stop())
	assert.False(t, f.drv.IsOpen())
	assert.Empty(t, f.reg.Services)
}

func TestStartReuse(t *testing.T) {
	f := newFixture(t)
	f.reg.Services[winring0.Identity] = &drivertest.Record{
		Name:  winring0.Identity,
		State: driver.Running,
	}

	err := f.drv.Start(false)
	assert.True(t, errors.Is(err, driver.ErrServiceExists))

	require.NoError(t, f.drv.Start(true))
	require.NoError(t, f.drv.Stop())

	// A reused service is not ours to remove.
	assert.True(t, f.reg.Running(winring0.Identity))
}

func TestStartReuseStartsStoppedService(t *testing.T) {
	f := newFixture(t)
	f.reg.Services[winring0.Identity] = &drivertest.Record{
		Name:  winring0.Identity,
		State: driver.Stopped,
	}

	require.NoError(t, f.drv.Start(true))
	assert.True(t, f.drv.IsOpen())
	assert.True(t, f.reg.Running(winring0.Identity))

	require.NoError(t, f.drv.Stop())
	require.Contains(t, f.reg.Services, winring0.Identity, "a reused service stays registered")
}

func TestStartReuseStartFailure(t *testing.T) {
	f := newFixture(t)
	f.reg.Services[winring0.Identity] = &drivertest.Record{
		Name:  winring0.Identity,
		State: driver.Stopped,
	}
	f.reg.Fail["start"] = drivertest.ErrAccessDenied

	err := f.drv.Start(true)
	var serr *driver.ServiceError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, "start", serr.Op)
	assert.False(t, f.drv.IsOpen())
	assert.Contains(t, f.reg.Services, winring0.Identity)
}

func TestStartRemovesServiceWhenOpenFails(t *testing.T) {
	f := newFixture(t)
	f.dev.OpenErr = drivertest.ErrAccessDenied

	err := f.drv.Start(false)
	var derr *driver.DeviceError
	require.True(t, errors.As(err, &derr))
	assert.Empty(t, f.reg.Services)
	assert.False(t, f.drv.IsOpen())
}

func TestStopJoinsErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.drv.Start(false))
	f.reg.Fail["delete"] = drivertest.ErrAccessDenied

	err := f.drv.Stop()
	var serr *driver.ServiceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "delete", serr.Op)
	assert.False(t, f.drv.IsOpen())
}

func TestBinariesLoad(t *testing.T) {
	dir := t.TempDir()
	x64 := filepath.Join(dir, "WinRing0x64.sys")
	require.NoError(t, os.WriteFile(x64, []byte("image"), 0o644))
	empty := filepath.Join(dir, "WinRing0.sys")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	b := winring0.Binaries{X64: x64, X86: empty}

	image, err := b.Load("amd64")
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), image)

	_, err = b.Load("386")
	assert.Error(t, err)

	_, err = winring0.Binaries{X64: filepath.Join(dir, "missing.sys")}.Load("amd64")
	assert.Error(t, err)
}
