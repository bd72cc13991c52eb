package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/mscrnt/ring0/internal/config"
	"github.com/mscrnt/ring0/pkg/driver"
	"github.com/mscrnt/ring0/pkg/winring0"
	"github.com/sirupsen/logrus"
)

// buildDescriptor resolves the driver image from configuration. An explicit
// path is used as is; otherwise the image for this architecture is read and
// staged.
func buildDescriptor(c config.DriverConfig) (*driver.Descriptor, error) {
	b := driver.NewBuilder(c.Identity).
		Description(c.Description).
		DeviceType(c.DeviceType)

	if c.Path != "" {
		b.Path(c.Path)
	} else {
		image, err := winring0.Binaries{X64: c.BinaryX64, X86: c.BinaryX86}.Load(runtime.GOARCH)
		if err != nil {
			return nil, err
		}
		b.Binary(image)
	}

	return b.Build()
}

// session is a started driver plus the lock that serializes its use.
type session struct {
	drv  *winring0.Driver
	mu   sync.Mutex
	sigs chan os.Signal
	once sync.Once
}

// startDriver installs and opens the configured driver. With exitOnSignal
// set, SIGINT and SIGTERM release the driver and exit the process.
func startDriver(exitOnSignal bool) (*session, error) {
	desc, err := buildDescriptor(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare driver: %w", err)
	}

	warnIfNotElevated()
	drv := winring0.New(desc, driver.NewServices(log), driver.NewChannel(log), log)
	if err := drv.Start(reuse); err != nil {
		return nil, fmt.Errorf("failed to start driver: %w", err)
	}

	s := &session{drv: drv}
	if exitOnSignal {
		s.sigs = make(chan os.Signal, 1)
		signal.Notify(s.sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			if _, ok := <-s.sigs; !ok {
				return
			}
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			s.Close()
			os.Exit(1)
		}()
	}
	return s, nil
}

// Close stops signal handling and releases the driver. It is safe to call
// more than once.
func (s *session) Close() {
	s.once.Do(func() {
		if s.sigs != nil {
			signal.Stop(s.sigs)
			close(s.sigs)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.drv.Stop(); err != nil {
			log.WithError(err).Error("Failed to release driver")
		}
	})
}

// ReadMSR reads under the session lock.
func (s *session) ReadMSR(index uint32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drv.ReadMSR(index)
}

func warnIfNotElevated() {
	if !driver.Elevated() {
		log.Warn("Not running as Administrator; installing the driver will likely fail")
	}
}

func parseIndex(arg string) (uint32, error) {
	v, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid MSR index: %s", arg)
	}
	return uint32(v), nil
}

func logFields(desc *driver.Descriptor) logrus.Fields {
	return logrus.Fields{
		"service": desc.Identity(),
		"path":    desc.Path(),
		"staged":  desc.Staged(),
	}
}
