//go:build !windows
// +build !windows

package cpu

import "errors"

// WMISource reads facts from the Win32_Processor class. It is only
// available on Windows.
type WMISource struct{}

// Facts implements FactSource.
func (WMISource) Facts() (Facts, error) {
	return Facts{}, errors.New("WMI is not available on this platform")
}
