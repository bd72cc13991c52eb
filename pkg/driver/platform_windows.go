//go:build windows
// +build windows

package driver

import (
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// connectPlatform connects to the local service control manager.
func connectPlatform() (ServiceManager, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, err
	}
	return &scManager{m: m}, nil
}

type scManager struct {
	m *mgr.Mgr
}

func (s *scManager) CreateService(name string, cfg ServiceConfig) (Service, error) {
	service, err := s.m.CreateService(name, cfg.BinaryPath, mgr.Config{
		ServiceType:  windows.SERVICE_KERNEL_DRIVER,
		StartType:    mgr.StartManual,
		ErrorControl: mgr.ErrorNormal,
		DisplayName:  cfg.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	return &scService{s: service}, nil
}

func (s *scManager) OpenService(name string) (Service, error) {
	service, err := s.m.OpenService(name)
	if err != nil {
		return nil, err
	}
	return &scService{s: service}, nil
}

func (s *scManager) Disconnect() error {
	return s.m.Disconnect()
}

type scService struct {
	s *mgr.Service
}

func (s *scService) Start() error {
	return s.s.Start()
}

func (s *scService) Query() (ServiceState, error) {
	status, err := s.s.Query()
	if err != nil {
		return 0, err
	}
	return ServiceState(status.State), nil
}

func (s *scService) Stop() error {
	_, err := s.s.Control(svc.Stop)
	return err
}

func (s *scService) Delete() error {
	return s.s.Delete()
}

func (s *scService) Close() error {
	return s.s.Close()
}

// platformDevice opens device nodes with CreateFile.
func platformDevice() Device {
	return winDevice{}
}

type winDevice struct{}

func (winDevice) Open(path string) (Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateFile(name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0)
	if err != nil {
		return nil, err
	}
	return winHandle(h), nil
}

type winHandle windows.Handle

func (h winHandle) Control(code uint32, in, out []byte) (int, error) {
	var inPtr, outPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	if len(out) > 0 {
		outPtr = &out[0]
	}

	var returned uint32
	err := windows.DeviceIoControl(windows.Handle(h), code,
		inPtr, uint32(len(in)),
		outPtr, uint32(len(out)),
		&returned, nil)
	return int(returned), err
}

func (h winHandle) Close() error {
	return windows.CloseHandle(windows.Handle(h))
}

// Elevated reports whether the process token is elevated. Installing a
// kernel driver requires it.
func Elevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
