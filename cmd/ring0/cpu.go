package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mscrnt/ring0/pkg/db"
	"github.com/mscrnt/ring0/pkg/hardware/cpu"
	"github.com/mscrnt/ring0/pkg/metrics"
	"github.com/mscrnt/ring0/pkg/schedule"
	"github.com/spf13/cobra"
)

func factSource() cpu.FactSource {
	return cpu.FirstOf(cpu.WMISource{}, cpu.CPUIDSource{})
}

func cpuCmd() *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:   "cpu",
		Short: "Show CPU identity and sensor readings",
		Long: `Detect the CPU, read the selected sensors through the driver and print them.

Examples:
  # Temperature and frequency
  ring0 cpu

  # Identity only, no driver needed
  ring0 cpu --kind load`,
		RunE: func(_ *cobra.Command, _ []string) error {
			kind, err := cpu.ParseKind(kindName)
			if err != nil {
				return err
			}

			c, err := cpu.Detect(factSource(), log)
			if err != nil {
				return err
			}

			if kind != cpu.Load {
				s, err := startDriver(true)
				if err != nil {
					return err
				}
				defer s.Close()
				c.Bind(s)
			}

			if err := c.Update(kind); err != nil {
				return fmt.Errorf("failed to update %s: %w", kind, err)
			}

			printRecord(c.Record(), kind)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", "all", "Readings to take (frequency, temperature, load, all)")

	return cmd
}

func printRecord(rec cpu.Record, kind cpu.Kind) {
	fmt.Printf("Vendor:      %s\n", rec.Vendor)
	if rec.Brand != "" {
		fmt.Printf("Brand:       %s\n", rec.Brand)
	}
	fmt.Printf("Family:      %d (model %d)\n", rec.Family, rec.Model)
	fmt.Printf("Cores:       %d logical\n", rec.Cores)

	if kind == cpu.Temperature || kind == cpu.All {
		fmt.Printf("TjMax:       %d C\n", rec.TjMax)
		fmt.Printf("Package:     %d C\n", rec.PackageTemp)
	}
	if kind == cpu.Frequency || kind == cpu.All {
		fmt.Printf("Frequency:   %d MHz (ratio %d)\n", rec.FrequencyMHz, rec.Ratio)
	}
}

func watchCmd() *cobra.Command {
	var (
		kindName string
		every    time.Duration
		record   bool
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sample CPU sensors periodically",
		Long: `Keep the driver open and sample CPU sensors until interrupted.

Examples:
  # Sample every 2 seconds
  ring0 watch

  # Sample temperature every 5 seconds and store the samples
  ring0 watch --kind temperature --every 5s --record

  # Expose readings for Prometheus on :9182/metrics
  ring0 watch --listen :9182`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := cpu.ParseKind(kindName)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("every") {
				every = cfg.Watch.Every
			}
			if !cmd.Flags().Changed("listen") {
				listen = cfg.Watch.Listen
			}

			c, err := cpu.Detect(factSource(), log)
			if err != nil {
				return err
			}

			s, err := startDriver(false)
			if err != nil {
				return err
			}
			defer s.Close()
			// The runner takes s.mu around each update.
			c.Bind(s.drv)

			runnerCfg := schedule.Config{
				Kind:  kind,
				Every: every,
				Lock:  &s.mu,
				OnSample: func(rec cpu.Record) {
					fmt.Printf("%s  %3d C  %5d MHz\n",
						rec.UpdatedAt.Format("15:04:05"), rec.PackageTemp, rec.FrequencyMHz)
				},
			}

			var (
				store *db.DB
				sess  *db.Session
			)
			if record {
				store, err = db.Open(cfg.Store.Path)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer func() { _ = store.Close() }()

				rec := c.Record()
				sess, err = store.CreateSession(cfg.Driver.Identity, rec.Vendor, rec.Brand, kind.String())
				if err != nil {
					return err
				}
				runnerCfg.Store = store
				runnerCfg.SessionID = sess.ID
				log.WithField("session", sess.ID).Info("Recording samples")
			}

			if listen != "" {
				m := metrics.New(c.Record())
				runnerCfg.OnSample = observing(m, runnerCfg.OnSample)
				runnerCfg.OnError = m.Fail
				srv := metrics.Serve(listen, m, log)
				defer func() {
					if err := srv.Shutdown(); err != nil {
						log.WithError(err).Warn("Failed to stop metrics server")
					}
				}()
			}

			runner := schedule.NewRunner(c, runnerCfg, log)
			if err := runner.Sample(); err != nil {
				log.WithError(err).Warn("Initial sample failed")
			}
			if err := runner.Start(); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			fmt.Println("Watching. Press Ctrl+C to stop.")
			<-sigChan
			log.Info("Received shutdown signal")
			runner.Stop()

			if sess != nil {
				if err := store.FinishSession(sess.ID, nil); err != nil {
					log.WithError(err).Warn("Failed to finish session")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", "all", "Readings to take (frequency, temperature, load, all)")
	cmd.Flags().DurationVar(&every, "every", 2*time.Second, "Sampling interval (default from config)")
	cmd.Flags().BoolVar(&record, "record", false, "Store samples in the history database")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve Prometheus metrics on this address (default from config)")

	return cmd
}

func observing(m *metrics.Metrics, next func(cpu.Record)) func(cpu.Record) {
	return func(rec cpu.Record) {
		m.Observe(rec)
		if next != nil {
			next(rec)
		}
	}
}
