// Package cpu selects a vendor-specific implementation for the host
// processor and refreshes its sensor readings from model-specific registers.
package cpu

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind selects which readings Update refreshes.
type Kind int

// Update kinds.
const (
	Frequency Kind = iota
	Temperature
	Load
	All
)

func (k Kind) String() string {
	switch k {
	case Frequency:
		return "frequency"
	case Temperature:
		return "temperature"
	case Load:
		return "load"
	case All:
		return "all"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the name of a Kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Frequency, Temperature, Load, All} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown update kind %q", s)
}

// MSRReader reads model-specific registers.
type MSRReader interface {
	ReadMSR(index uint32) (uint64, error)
}

// CPU is a vendor implementation.
type CPU interface {
	// Update refreshes the readings selected by kind.
	Update(kind Kind) error
	// Cores returns the number of logical cores.
	Cores() int
	// Bind attaches the register reader Update uses.
	Bind(r MSRReader)
	// Record returns a copy of the latest readings.
	Record() Record
}

// Record holds the identity and latest readings of a processor. Temperatures
// are degrees Celsius.
type Record struct {
	Vendor       string
	Family       int
	Model        int
	Brand        string
	Cores        int
	TjMax        int
	PackageTemp  int
	Ratio        int
	FrequencyMHz int
	UpdatedAt    time.Time
}

// ErrNotBound is returned by Update when a register read is needed and no
// reader has been bound.
var ErrNotBound = errors.New("no MSR reader bound")

// UnsupportedVendorError is returned by Detect for vendors without an
// implementation. Known is set for vendors that are recognised but not
// implemented.
type UnsupportedVendorError struct {
	Vendor string
	Known  bool
}

func (e *UnsupportedVendorError) Error() string {
	if e.Known {
		return fmt.Sprintf("CPU vendor %s is not implemented", e.Vendor)
	}
	return fmt.Sprintf("unsupported CPU vendor %q", e.Vendor)
}

type constructor func(f Facts, log logrus.FieldLogger) CPU

// vendors is the closed dispatch table. A nil constructor marks a vendor
// that is recognised but not implemented.
var vendors = map[string]constructor{
	"GenuineIntel": newIntel,
	"AuthenticAMD": nil,
}

// Detect reads facts from src and returns the matching implementation.
func Detect(src FactSource, log logrus.FieldLogger) (CPU, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	f, err := src.Facts()
	if err != nil {
		return nil, fmt.Errorf("failed to identify CPU: %w", err)
	}
	log.WithFields(logrus.Fields{
		"vendor": f.Vendor,
		"family": f.Family,
		"model":  f.Model,
		"cores":  f.LogicalCores,
	}).Debug("Detected CPU")

	ctor, known := vendors[f.Vendor]
	if ctor == nil {
		return nil, &UnsupportedVendorError{Vendor: f.Vendor, Known: known}
	}
	return ctor(f, log), nil
}
