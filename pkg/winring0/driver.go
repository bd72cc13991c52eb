// Package winring0 drives the WinRing0 kernel driver: it installs the
// service, opens the device node and issues requests from the driver's
// fixed operation table.
package winring0

import (
	"errors"
	"fmt"

	"github.com/mscrnt/ring0/pkg/driver"
	"github.com/mscrnt/ring0/pkg/ioctl"
	"github.com/sirupsen/logrus"
)

// Defaults for the stock driver build.
const (
	Identity    = "WinRing0_1_2_0"
	Description = "WinRing0 MSR access driver"
)

// Driver ties a descriptor to the service controller and the device channel
// that serve it. A Driver is not safe for concurrent use.
type Driver struct {
	desc     *driver.Descriptor
	services *driver.Services
	channel  *driver.Channel
	log      logrus.FieldLogger

	// owned is set when this Driver installed the service itself and so is
	// responsible for removing it.
	owned bool
}

// New returns a Driver for desc. Nothing is installed or opened.
func New(desc *driver.Descriptor, services *driver.Services, channel *driver.Channel, log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{
		desc:     desc,
		services: services,
		channel:  channel,
		log:      log.WithField("driver", desc.Identity()),
	}
}

// Descriptor returns the driver's descriptor.
func (d *Driver) Descriptor() *driver.Descriptor {
	return d.desc
}

// Install registers and starts the driver service.
func (d *Driver) Install() error {
	if err := d.services.Install(d.desc); err != nil {
		return err
	}
	d.owned = true
	return nil
}

// Uninstall stops and removes the driver service.
func (d *Driver) Uninstall() error {
	if err := d.services.Uninstall(d.desc.Identity()); err != nil {
		return err
	}
	d.owned = false
	return nil
}

// State reports the service state.
func (d *Driver) State() (driver.ServiceState, error) {
	return d.services.State(d.desc.Identity())
}

// Open acquires the device handle.
func (d *Driver) Open() error {
	return d.channel.Open(d.desc.Identity())
}

// Close releases the device handle.
func (d *Driver) Close() error {
	return d.channel.Close()
}

// IsOpen reports whether the device handle is held.
func (d *Driver) IsOpen() bool {
	return d.channel.IsOpen()
}

// IO issues the named table operation with input.
func (d *Driver) IO(op string, input uint32) (uint64, error) {
	code, ok := Ops.Code(op)
	if !ok {
		return 0, fmt.Errorf("unknown operation %q", op)
	}
	return d.channel.IO(code, input)
}

// ReadMSR returns the raw 64-bit value of the model-specific register index
// on the processor the driver happens to run the request on.
func (d *Driver) ReadMSR(index uint32) (uint64, error) {
	v, err := d.channel.IO(readMSR, index)
	if err != nil {
		return 0, fmt.Errorf("failed to read MSR 0x%x: %w", index, err)
	}
	d.log.WithField("msr", fmt.Sprintf("0x%x", index)).Tracef("MSR value 0x%016x", v)
	return v, nil
}

// Start installs the service and opens the device. With reuse set, a service
// that is already registered is used instead, started first if it is
// stopped, and left in place by Stop. If the device cannot be opened, a
// service installed here is removed again.
func (d *Driver) Start(reuse bool) error {
	err := d.Install()
	switch {
	case err == nil:
	case reuse && errors.Is(err, driver.ErrServiceExists):
		if err := d.resume(); err != nil {
			return err
		}
	default:
		return err
	}

	if err := d.Open(); err != nil {
		if d.owned {
			if uerr := d.Uninstall(); uerr != nil {
				d.log.WithError(uerr).Warn("Failed to remove driver service after open failure")
			}
		}
		return err
	}
	return nil
}

// resume starts a registered service left in the stopped state, as a
// demand-start driver is after a reboot.
func (d *Driver) resume() error {
	state, err := d.State()
	if err != nil {
		return err
	}
	log := d.log.WithField("state", state)
	if state != driver.Stopped {
		log.Info("Reusing existing driver service")
		return nil
	}
	log.Info("Starting existing driver service")
	return d.services.Start(d.desc.Identity())
}

// Stop closes the device if open and uninstalls the service if Start
// installed it. Both steps run; their errors are joined.
func (d *Driver) Stop() error {
	var errs []error
	if d.channel.IsOpen() {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.owned {
		if err := d.Uninstall(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var readMSR = mustCode(OpReadMSR)

func mustCode(op string) ioctl.Code {
	c, ok := Ops.Code(op)
	if !ok {
		panic("winring0: missing operation " + op)
	}
	return c
}
