//go:build !windows
// +build !windows

package driver

// connectPlatform fails on systems without a Windows service manager.
func connectPlatform() (ServiceManager, error) {
	return nil, ErrUnsupported
}

func platformDevice() Device {
	return unsupportedDevice{}
}

type unsupportedDevice struct{}

func (unsupportedDevice) Open(string) (Handle, error) {
	return nil, ErrUnsupported
}

// Elevated reports true: there is no token elevation to check here, and
// every driver operation fails with ErrUnsupported anyway.
func Elevated() bool {
	return true
}
