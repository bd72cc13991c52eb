package driver_test

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/mscrnt/ring0/pkg/driver"
	"github.com/mscrnt/ring0/pkg/driver/drivertest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(t *testing.T) *driver.Descriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Test.sys")
	require.NoError(t, os.WriteFile(path, []byte{1}, 0o644))

	desc, err := driver.NewBuilder("Test").Description("test driver").DeviceType(40000).Path(path).Build()
	require.NoError(t, err)
	return desc
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestInstall(t *testing.T) {
	reg := drivertest.NewRegistry()
	services := driver.NewServicesWith(reg.Connect, quietLogger())
	desc := testDescriptor(t)

	require.NoError(t, services.Install(desc))

	rec := reg.Services["Test"]
	require.NotNil(t, rec)
	assert.Equal(t, "test driver", rec.DisplayName)
	assert.Equal(t, desc.Path(), rec.BinaryPath)
	assert.Equal(t, driver.Running, rec.State)
	assert.Equal(t, []string{"connect", "create", "start", "disconnect"}, reg.Calls)
}

func TestInstallExistingIsDistinguishable(t *testing.T) {
	reg := drivertest.NewRegistry()
	services := driver.NewServicesWith(reg.Connect, quietLogger())
	desc := testDescriptor(t)

	require.NoError(t, services.Install(desc))
	err := services.Install(desc)

	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrServiceExists))
	assert.False(t, errors.Is(err, driver.ErrServiceNotFound))

	var serr *driver.ServiceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "create", serr.Op)
	assert.Equal(t, drivertest.ErrServiceExists, serr.Code)
}

func TestInstallFailures(t *testing.T) {
	tests := []struct {
		step string
		code syscall.Errno
	}{
		{"connect", drivertest.ErrAccessDenied},
		{"create", drivertest.ErrAccessDenied},
		{"start", syscall.Errno(577)},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			reg := drivertest.NewRegistry()
			reg.Fail[tt.step] = tt.code
			services := driver.NewServicesWith(reg.Connect, quietLogger())

			err := services.Install(testDescriptor(t))

			var serr *driver.ServiceError
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, tt.step, serr.Op)
			assert.Equal(t, tt.code, serr.Code)
			assert.Contains(t, err.Error(), "Test")
		})
	}
}

func TestInstallRemovesServiceThatFailsToStart(t *testing.T) {
	reg := drivertest.NewRegistry()
	reg.Fail["start"] = syscall.Errno(577)
	services := driver.NewServicesWith(reg.Connect, quietLogger())

	err := services.Install(testDescriptor(t))
	require.Error(t, err)

	assert.NotContains(t, reg.Services, "Test")
}

func TestUninstall(t *testing.T) {
	reg := drivertest.NewRegistry()
	services := driver.NewServicesWith(reg.Connect, quietLogger())
	require.NoError(t, services.Install(testDescriptor(t)))
	reg.Calls = nil

	require.NoError(t, services.Uninstall("Test"))

	assert.NotContains(t, reg.Services, "Test")
	assert.Equal(t, []string{"connect", "open", "query", "stop", "delete", "disconnect"}, reg.Calls)
}

func TestUninstallStoppedSkipsStop(t *testing.T) {
	reg := drivertest.NewRegistry()
	reg.Services["Test"] = &drivertest.Record{Name: "Test", State: driver.Stopped}
	services := driver.NewServicesWith(reg.Connect, quietLogger())

	require.NoError(t, services.Uninstall("Test"))
	assert.NotContains(t, reg.Calls, "stop")
}

func TestUninstallMissing(t *testing.T) {
	reg := drivertest.NewRegistry()
	services := driver.NewServicesWith(reg.Connect, quietLogger())

	err := services.Uninstall("Test")
	assert.True(t, errors.Is(err, driver.ErrServiceNotFound))

	var serr *driver.ServiceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "open", serr.Op)
}

func TestUninstallFailures(t *testing.T) {
	for _, step := range []string{"connect", "open", "query", "stop", "delete"} {
		t.Run(step, func(t *testing.T) {
			reg := drivertest.NewRegistry()
			reg.Services["Test"] = &drivertest.Record{Name: "Test", State: driver.Running}
			reg.Fail[step] = drivertest.ErrAccessDenied
			services := driver.NewServicesWith(reg.Connect, quietLogger())

			err := services.Uninstall("Test")

			var serr *driver.ServiceError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, step, serr.Op)
			assert.Equal(t, drivertest.ErrAccessDenied, serr.Code)
			assert.Contains(t, reg.Services, "Test")
		})
	}
}

func TestState(t *testing.T) {
	reg := drivertest.NewRegistry()
	reg.Services["Test"] = &drivertest.Record{Name: "Test", State: driver.Running}
	services := driver.NewServicesWith(reg.Connect, quietLogger())

	state, err := services.State("Test")
	require.NoError(t, err)
	assert.Equal(t, driver.Running, state)
	assert.Equal(t, "running", state.String())

	_, err = services.State("Other")
	assert.True(t, errors.Is(err, driver.ErrServiceNotFound))
}

func TestStart(t *testing.T) {
	reg := drivertest.NewRegistry()
	reg.Services["Test"] = &drivertest.Record{Name: "Test", State: driver.Stopped}
	services := driver.NewServicesWith(reg.Connect, quietLogger())

	require.NoError(t, services.Start("Test"))
	assert.True(t, reg.Running("Test"))

	err := services.Start("Other")
	assert.True(t, errors.Is(err, driver.ErrServiceNotFound))

	reg.Services["Test"].State = driver.Stopped
	reg.Fail["start"] = drivertest.ErrAccessDenied
	err = services.Start("Test")
	var serr *driver.ServiceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "start", serr.Op)
	assert.Equal(t, drivertest.ErrAccessDenied, serr.Code)
}

func TestServiceErrorMessageCarriesCode(t *testing.T) {
	err := &driver.ServiceError{Op: "start", Identity: "Test", Code: syscall.Errno(577), Err: errors.New("boom")}
	assert.Contains(t, err.Error(), "0x241")
	assert.Contains(t, err.Error(), "start")
}
