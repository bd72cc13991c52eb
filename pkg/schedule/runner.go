// Package schedule samples CPU readings on a fixed interval.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mscrnt/ring0/pkg/db"
	"github.com/mscrnt/ring0/pkg/hardware/cpu"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// stopTimeout bounds how long Stop waits for an in-flight sample.
const stopTimeout = 30 * time.Second

// Recorder persists samples.
type Recorder interface {
	CreateSample(sample *db.Sample) error
}

// Config configures a Runner.
type Config struct {
	Kind  cpu.Kind
	Every time.Duration

	// Lock serializes access to the driver behind the CPU. A private lock
	// is used when nil.
	Lock *sync.Mutex

	// Store and SessionID enable recording; Store may be nil.
	Store     Recorder
	SessionID int64

	// OnSample is called with each successful reading, under Lock.
	OnSample func(cpu.Record)

	// OnError is called with each failed reading, under Lock.
	OnError func(error)
}

// Runner refreshes a CPU on a cron schedule.
type Runner struct {
	cron *cron.Cron
	cpu  cpu.CPU
	cfg  Config
	mu   *sync.Mutex
	log  logrus.FieldLogger

	samples  int
	failures int
}

// NewRunner creates a new sampling runner
func NewRunner(c cpu.CPU, cfg Config, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	mu := cfg.Lock
	if mu == nil {
		mu = &sync.Mutex{}
	}

	return &Runner{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cpu:  c,
		cfg:  cfg,
		mu:   mu,
		log:  log.WithField("kind", cfg.Kind),
	}
}

// Start schedules sampling every cfg.Every and starts the scheduler.
// Intervals below one second are rounded up to one second.
func (r *Runner) Start() error {
	if r.cfg.Every <= 0 {
		return errors.New("sampling interval must be positive")
	}

	spec := "@every " + r.cfg.Every.String()
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	r.cron.Start()
	r.log.WithField("every", r.cfg.Every).Info("Sampler started")
	return nil
}

// Stop stops the scheduler and waits for a running sample to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(stopTimeout):
		r.log.Warn("Timeout waiting for sample to complete")
	}

	samples, failures := r.Stats()
	r.log.WithFields(logrus.Fields{
		"samples":  samples,
		"failures": failures,
	}).Info("Sampler stopped")
}

func (r *Runner) tick() {
	if err := r.Sample(); err != nil {
		r.log.WithError(err).Warn("Sample failed")
	}
}

// Sample takes one reading now. A reading that cannot be recorded counts as
// a failure.
func (r *Runner) Sample() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cpu.Update(r.cfg.Kind); err != nil {
		return r.fail(err)
	}
	rec := r.cpu.Record()

	if r.cfg.Store != nil {
		sample := &db.Sample{
			SessionID:    r.cfg.SessionID,
			TakenAt:      rec.UpdatedAt,
			TjMax:        rec.TjMax,
			PackageTemp:  rec.PackageTemp,
			Ratio:        rec.Ratio,
			FrequencyMHz: rec.FrequencyMHz,
		}
		if err := r.cfg.Store.CreateSample(sample); err != nil {
			return r.fail(fmt.Errorf("failed to record sample: %w", err))
		}
	}
	r.samples++

	if r.cfg.OnSample != nil {
		r.cfg.OnSample(rec)
	}
	return nil
}

func (r *Runner) fail(err error) error {
	r.failures++
	if r.cfg.OnError != nil {
		r.cfg.OnError(err)
	}
	return err
}

// Stats returns the number of successful and failed samples so far.
func (r *Runner) Stats() (samples, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples, r.failures
}
