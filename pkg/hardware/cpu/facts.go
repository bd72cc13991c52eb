package cpu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
	psutil "github.com/shirou/gopsutil/v3/cpu"
)

// Facts identifies the processor the process runs on.
type Facts struct {
	Vendor       string
	Family       int
	Model        int
	Brand        string
	LogicalCores int
}

// FactSource reports processor facts.
type FactSource interface {
	Facts() (Facts, error)
}

// CPUIDSource reads facts with the CPUID instruction, falling back to the
// operating system's view when CPUID is unavailable on the architecture.
type CPUIDSource struct{}

// Facts implements FactSource.
func (CPUIDSource) Facts() (Facts, error) {
	f := Facts{
		Vendor:       cpuid.CPU.VendorString,
		Family:       cpuid.CPU.Family,
		Model:        cpuid.CPU.Model,
		Brand:        strings.TrimSpace(cpuid.CPU.BrandName),
		LogicalCores: cpuid.CPU.LogicalCores,
	}

	if f.Vendor == "" {
		infos, err := psutil.Info()
		if err != nil {
			return Facts{}, fmt.Errorf("failed to get CPU info: %w", err)
		}
		if len(infos) == 0 {
			return Facts{}, errors.New("no CPU info reported")
		}
		f.Vendor = infos[0].VendorID
		f.Brand = strings.TrimSpace(infos[0].ModelName)
		f.Family, _ = strconv.Atoi(infos[0].Family)
		f.Model, _ = strconv.Atoi(infos[0].Model)
	}

	if f.LogicalCores <= 0 {
		n, err := psutil.Counts(true)
		if err != nil {
			return Facts{}, fmt.Errorf("failed to count logical cores: %w", err)
		}
		f.LogicalCores = n
	}
	return f, nil
}

// FirstOf returns a source that asks each of sources in turn and returns
// the first facts that name a vendor.
func FirstOf(sources ...FactSource) FactSource {
	return firstOf(sources)
}

type firstOf []FactSource

func (s firstOf) Facts() (Facts, error) {
	var errs []error
	for _, src := range s {
		f, err := src.Facts()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if f.Vendor != "" {
			return f, nil
		}
	}
	if len(errs) == 0 {
		return Facts{}, errors.New("no fact source reported a vendor")
	}
	return Facts{}, errors.Join(errs...)
}

// parseDescription pulls family and model out of a processor description
// such as "Intel64 Family 6 Model 158 Stepping 10".
func parseDescription(desc string) (family, model int) {
	fields := strings.Fields(desc)
	for i := 0; i+1 < len(fields); i++ {
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			continue
		}
		switch fields[i] {
		case "Family":
			family = n
		case "Model":
			model = n
		}
	}
	return family, model
}
