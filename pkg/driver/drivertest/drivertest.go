// Package drivertest provides in-memory service manager and device fakes
// for exercising driver lifecycles without a real kernel driver.
package drivertest

import (
	"encoding/binary"
	"strings"
	"syscall"

	"github.com/mscrnt/ring0/pkg/driver"
)

// Win32 codes the fakes return, matching what the real service manager and
// I/O manager report for the same situations.
const (
	ErrFileNotFound          = syscall.Errno(2)
	ErrAccessDenied          = syscall.Errno(5)
	ErrInvalidFunction       = syscall.Errno(1)
	ErrInvalidServiceControl = syscall.Errno(1052)
	ErrServiceNotActive      = syscall.Errno(1062)
	ErrServiceDoesNotExist   = syscall.Errno(1060)
	ErrServiceExists         = syscall.Errno(1073)
)

// Registry is an in-memory service control manager. Fail injects an error
// for the named step: connect, create, open, start, query, stop, delete.
type Registry struct {
	Services map[string]*Record
	Fail     map[string]error
	Calls    []string

	open map[string]int
}

// Record is one registered service.
type Record struct {
	Name        string
	DisplayName string
	BinaryPath  string
	State       driver.ServiceState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Services: make(map[string]*Record),
		Fail:     make(map[string]error),
		open:     make(map[string]int),
	}
}

// Connect implements driver.Connector.
func (r *Registry) Connect() (driver.ServiceManager, error) {
	if err := r.step("connect"); err != nil {
		return nil, err
	}
	return &manager{r: r}, nil
}

// Running reports whether name is registered and running.
func (r *Registry) Running(name string) bool {
	rec, ok := r.Services[name]
	return ok && rec.State == driver.Running
}

func (r *Registry) step(name string) error {
	r.Calls = append(r.Calls, name)
	return r.Fail[name]
}

type manager struct {
	r *Registry
}

func (m *manager) CreateService(name string, cfg driver.ServiceConfig) (driver.Service, error) {
	if err := m.r.step("create"); err != nil {
		return nil, err
	}
	if _, ok := m.r.Services[name]; ok {
		return nil, ErrServiceExists
	}
	m.r.Services[name] = &Record{
		Name:        name,
		DisplayName: cfg.DisplayName,
		BinaryPath:  cfg.BinaryPath,
		State:       driver.Stopped,
	}
	return &service{r: m.r, name: name}, nil
}

func (m *manager) OpenService(name string) (driver.Service, error) {
	if err := m.r.step("open"); err != nil {
		return nil, err
	}
	if _, ok := m.r.Services[name]; !ok {
		return nil, ErrServiceDoesNotExist
	}
	return &service{r: m.r, name: name}, nil
}

func (m *manager) Disconnect() error {
	m.r.Calls = append(m.r.Calls, "disconnect")
	return nil
}

type service struct {
	r    *Registry
	name string
}

func (s *service) record() (*Record, error) {
	rec, ok := s.r.Services[s.name]
	if !ok {
		return nil, ErrServiceDoesNotExist
	}
	return rec, nil
}

func (s *service) Start() error {
	if err := s.r.step("start"); err != nil {
		return err
	}
	rec, err := s.record()
	if err != nil {
		return err
	}
	rec.State = driver.Running
	return nil
}

func (s *service) Query() (driver.ServiceState, error) {
	if err := s.r.step("query"); err != nil {
		return 0, err
	}
	rec, err := s.record()
	if err != nil {
		return 0, err
	}
	return rec.State, nil
}

// Stop refuses while device handles are open, the way a driver with
// outstanding handles cannot unload.
func (s *service) Stop() error {
	if err := s.r.step("stop"); err != nil {
		return err
	}
	rec, err := s.record()
	if err != nil {
		return err
	}
	if rec.State != driver.Running {
		return ErrServiceNotActive
	}
	if s.r.open[s.name] > 0 {
		return ErrInvalidServiceControl
	}
	rec.State = driver.Stopped
	return nil
}

func (s *service) Delete() error {
	if err := s.r.step("delete"); err != nil {
		return err
	}
	if _, err := s.record(); err != nil {
		return err
	}
	delete(s.r.Services, s.name)
	return nil
}

func (s *service) Close() error {
	return nil
}

// Device is a fake device layer. When Registry is set, Open only succeeds
// for identities whose service is running. Handler answers control requests;
// by default it echoes Registers[input] for every code.
type Device struct {
	Registry  *Registry
	Registers map[uint32]uint64
	Handler   func(code, input uint32) (uint64, error)

	// ReplySize overrides the number of reply bytes reported (default 8).
	ReplySize int
	OpenErr   error
	CloseErr  error

	Opens    int
	Closes   int
	Requests []Request
}

// Request is one control request seen by the fake.
type Request struct {
	Code  uint32
	Input uint32
	Raw   []byte
}

// Open implements driver.Device.
func (d *Device) Open(path string) (driver.Handle, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	name := strings.TrimPrefix(path, driver.DevicePrefix)
	if d.Registry != nil {
		if !d.Registry.Running(name) {
			return nil, ErrFileNotFound
		}
		d.Registry.open[name]++
	}
	d.Opens++
	return &handle{d: d, name: name}, nil
}

type handle struct {
	d    *Device
	name string
}

func (h *handle) Control(code uint32, in, out []byte) (int, error) {
	if len(in) < driver.RequestSize {
		return 0, ErrInvalidFunction
	}
	input := binary.BigEndian.Uint32(in)
	h.d.Requests = append(h.d.Requests, Request{
		Code:  code,
		Input: input,
		Raw:   append([]byte(nil), in...),
	})

	var value uint64
	if h.d.Handler != nil {
		v, err := h.d.Handler(code, input)
		if err != nil {
			return 0, err
		}
		value = v
	} else {
		value = h.d.Registers[input]
	}

	n := driver.ResponseSize
	if h.d.ReplySize != 0 {
		n = h.d.ReplySize
	}
	if len(out) >= driver.ResponseSize {
		binary.LittleEndian.PutUint64(out, value)
	}
	return n, nil
}

func (h *handle) Close() error {
	h.d.Closes++
	if h.d.Registry != nil {
		h.d.Registry.open[h.name]--
	}
	return h.d.CloseErr
}
