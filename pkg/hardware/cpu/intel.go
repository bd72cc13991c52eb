package cpu

import (
	"fmt"
	"time"

	"github.com/mscrnt/ring0/pkg/msr"
	"github.com/sirupsen/logrus"
)

// busClockMHz is the reference clock the perf-status ratio multiplies.
const busClockMHz = 100

type intel struct {
	rec    Record
	reader MSRReader
	log    logrus.FieldLogger
	now    func() time.Time
}

func newIntel(f Facts, log logrus.FieldLogger) CPU {
	return &intel{
		rec: Record{
			Vendor: f.Vendor,
			Family: f.Family,
			Model:  f.Model,
			Brand:  f.Brand,
			Cores:  f.LogicalCores,
		},
		log: log.WithField("vendor", "intel"),
		now: time.Now,
	}
}

func (c *intel) Cores() int { return c.rec.Cores }

func (c *intel) Bind(r MSRReader) { c.reader = r }

func (c *intel) Record() Record { return c.rec }

func (c *intel) Update(kind Kind) error {
	switch kind {
	case Load:
		return nil
	case Temperature:
		return c.update(c.temperature)
	case Frequency:
		return c.update(c.frequency)
	case All:
		if err := c.update(c.temperature); err != nil {
			return err
		}
		return c.update(c.frequency)
	default:
		return fmt.Errorf("unknown update kind %s", kind)
	}
}

func (c *intel) update(read func() error) error {
	if c.reader == nil {
		return ErrNotBound
	}
	if err := read(); err != nil {
		return err
	}
	c.rec.UpdatedAt = c.now()
	return nil
}

func (c *intel) temperature() error {
	target, err := c.reader.ReadMSR(msr.TemperatureTarget)
	if err != nil {
		return fmt.Errorf("failed to read temperature target: %w", err)
	}
	status, err := c.reader.ReadMSR(msr.PackageThermStatus)
	if err != nil {
		return fmt.Errorf("failed to read package thermal status: %w", err)
	}

	tjMax := int(msr.Extract(uint64(msr.Low(target)), 16, 8))
	readout := int(msr.Extract(status, 16, 7))

	c.rec.TjMax = tjMax
	c.rec.PackageTemp = tjMax - readout
	c.log.WithFields(logrus.Fields{
		"tjmax":   tjMax,
		"readout": readout,
	}).Debugf("Package temperature %d C", c.rec.PackageTemp)
	return nil
}

func (c *intel) frequency() error {
	status, err := c.reader.ReadMSR(msr.PerfStatus)
	if err != nil {
		return fmt.Errorf("failed to read perf status: %w", err)
	}

	ratio := int(msr.Extract(status, 8, 8))
	c.rec.Ratio = ratio
	c.rec.FrequencyMHz = ratio * busClockMHz
	c.log.WithField("ratio", ratio).Debugf("Core frequency %d MHz", c.rec.FrequencyMHz)
	return nil
}
