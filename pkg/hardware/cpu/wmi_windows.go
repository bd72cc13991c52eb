//go:build windows
// +build windows

package cpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

type win32Processor struct {
	Name                      string
	Manufacturer              string
	Description               string
	NumberOfLogicalProcessors uint32
}

// WMISource reads facts from the Win32_Processor class.
type WMISource struct{}

// Facts implements FactSource. Logical processors are summed over sockets.
func (WMISource) Facts() (Facts, error) {
	var procs []win32Processor
	q := "SELECT Name, Manufacturer, Description, NumberOfLogicalProcessors FROM Win32_Processor"
	if err := wmi.Query(q, &procs); err != nil {
		return Facts{}, fmt.Errorf("failed to query Win32_Processor: %w", err)
	}
	if len(procs) == 0 {
		return Facts{}, errors.New("no Win32_Processor instances")
	}

	f := Facts{
		Vendor: procs[0].Manufacturer,
		Brand:  strings.TrimSpace(procs[0].Name),
	}
	f.Family, f.Model = parseDescription(procs[0].Description)
	for _, p := range procs {
		f.LogicalCores += int(p.NumberOfLogicalProcessors)
	}
	return f, nil
}
