package driver

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ServiceState mirrors the service manager's current-state values.
type ServiceState uint32

// Service states, numerically equal to SERVICE_STOPPED..SERVICE_PAUSED.
const (
	Stopped ServiceState = iota + 1
	StartPending
	StopPending
	Running
	ContinuePending
	PausePending
	Paused
)

func (s ServiceState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case StartPending:
		return "start-pending"
	case StopPending:
		return "stop-pending"
	case Running:
		return "running"
	case ContinuePending:
		return "continue-pending"
	case PausePending:
		return "pause-pending"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// ServiceConfig is the variable part of a driver registration. The backend
// always registers a kernel driver with demand start, normal error control,
// no dependencies and no account.
type ServiceConfig struct {
	DisplayName string
	BinaryPath  string
}

// ServiceManager is a connection to the OS service control manager.
type ServiceManager interface {
	CreateService(name string, cfg ServiceConfig) (Service, error)
	OpenService(name string) (Service, error)
	Disconnect() error
}

// Service is an open handle to one registered service.
type Service interface {
	Start() error
	Query() (ServiceState, error)
	Stop() error
	Delete() error
	Close() error
}

// Connector opens a ServiceManager connection.
type Connector func() (ServiceManager, error)

// Services registers, starts, stops and removes drivers with the service
// manager. Each call connects, does its work and disconnects; nothing is
// held between calls. Services is not safe for concurrent use.
type Services struct {
	connect Connector
	log     logrus.FieldLogger
}

// NewServices returns a controller backed by the platform service manager.
func NewServices(log logrus.FieldLogger) *Services {
	return NewServicesWith(connectPlatform, log)
}

// NewServicesWith returns a controller backed by connect.
func NewServicesWith(connect Connector, log logrus.FieldLogger) *Services {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Services{connect: connect, log: log}
}

// Install registers desc as an on-demand kernel driver service and starts
// it. Registering an identity that already exists fails with an error
// matching ErrServiceExists. If the service was created but does not start,
// the registration is removed again before the start error is returned.
func (s *Services) Install(desc *Descriptor) error {
	id := desc.Identity()
	log := s.log.WithField("service", id)

	m, err := s.dial(id)
	if err != nil {
		return err
	}
	defer s.hangup(m, id)

	log.WithField("path", desc.Path()).Debug("Creating driver service")
	svc, err := m.CreateService(id, ServiceConfig{
		DisplayName: desc.Description(),
		BinaryPath:  desc.Path(),
	})
	if err != nil {
		return newServiceError("create", id, err)
	}
	defer svc.Close()

	log.Debug("Starting driver service")
	if err := svc.Start(); err != nil {
		startErr := newServiceError("start", id, err)
		if derr := svc.Delete(); derr != nil {
			log.WithError(derr).Warn("Failed to remove service after start failure")
		}
		return startErr
	}

	log.Info("Driver service installed")
	return nil
}

// Uninstall stops the service if it is not already stopped and deletes its
// registration.
func (s *Services) Uninstall(identity string) error {
	log := s.log.WithField("service", identity)

	m, err := s.dial(identity)
	if err != nil {
		return err
	}
	defer s.hangup(m, identity)

	svc, err := m.OpenService(identity)
	if err != nil {
		return newServiceError("open", identity, err)
	}
	defer svc.Close()

	state, err := svc.Query()
	if err != nil {
		return newServiceError("query", identity, err)
	}

	if state != Stopped {
		log.WithField("state", state).Debug("Stopping driver service")
		if err := svc.Stop(); err != nil {
			return newServiceError("stop", identity, err)
		}
	}

	log.Debug("Deleting driver service")
	if err := svc.Delete(); err != nil {
		return newServiceError("delete", identity, err)
	}

	log.Info("Driver service uninstalled")
	return nil
}

// Start starts the already registered service identity.
func (s *Services) Start(identity string) error {
	m, err := s.dial(identity)
	if err != nil {
		return err
	}
	defer s.hangup(m, identity)

	svc, err := m.OpenService(identity)
	if err != nil {
		return newServiceError("open", identity, err)
	}
	defer svc.Close()

	s.log.WithField("service", identity).Debug("Starting driver service")
	if err := svc.Start(); err != nil {
		return newServiceError("start", identity, err)
	}
	return nil
}

// State reports the current state of the service registered as identity.
func (s *Services) State(identity string) (ServiceState, error) {
	m, err := s.dial(identity)
	if err != nil {
		return 0, err
	}
	defer s.hangup(m, identity)

	svc, err := m.OpenService(identity)
	if err != nil {
		return 0, newServiceError("open", identity, err)
	}
	defer svc.Close()

	state, err := svc.Query()
	if err != nil {
		return 0, newServiceError("query", identity, err)
	}
	return state, nil
}

func (s *Services) dial(identity string) (ServiceManager, error) {
	m, err := s.connect()
	if err != nil {
		return nil, newServiceError("connect", identity, err)
	}
	return m, nil
}

func (s *Services) hangup(m ServiceManager, identity string) {
	if err := m.Disconnect(); err != nil {
		s.log.WithField("service", identity).WithError(err).Warn("Failed to disconnect from service manager")
	}
}

func newServiceError(op, identity string, err error) *ServiceError {
	return &ServiceError{
		Op:       op,
		Identity: identity,
		Code:     errnoOf(err),
		Err:      err,
	}
}
