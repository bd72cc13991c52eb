package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mscrnt/ring0/pkg/driver"
	"github.com/mscrnt/ring0/pkg/msr"
	"github.com/mscrnt/ring0/pkg/winring0"
	"github.com/spf13/cobra"
)

func installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Register and start the driver service",
		Long: `Register the configured driver as an on-demand kernel driver service and
start it. The service stays installed until "ring0 uninstall".

Examples:
  # Install using the configured per-architecture image
  ring0 install

  # Succeed if the service is already installed
  ring0 install --reuse`,
		RunE: func(_ *cobra.Command, _ []string) error {
			desc, err := buildDescriptor(cfg.Driver)
			if err != nil {
				return fmt.Errorf("failed to prepare driver: %w", err)
			}
			log.WithFields(logFields(desc)).Debug("Driver prepared")

			warnIfNotElevated()
			err = driver.NewServices(log).Install(desc)
			switch {
			case err == nil:
				fmt.Printf("Installed %s from %s\n", desc.Identity(), desc.Path())
			case reuse && errors.Is(err, driver.ErrServiceExists):
				fmt.Printf("%s is already installed\n", desc.Identity())
			default:
				return err
			}
			return nil
		},
	}
}

func uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the driver service",
		RunE: func(_ *cobra.Command, _ []string) error {
			id := cfg.Driver.Identity
			if err := driver.NewServices(log).Uninstall(id); err != nil {
				if errors.Is(err, driver.ErrServiceNotFound) {
					fmt.Printf("%s is not installed\n", id)
					return nil
				}
				return err
			}
			fmt.Printf("Uninstalled %s\n", id)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the driver service state",
		RunE: func(_ *cobra.Command, _ []string) error {
			id := cfg.Driver.Identity
			state, err := driver.NewServices(log).State(id)
			if errors.Is(err, driver.ErrServiceNotFound) {
				fmt.Printf("%s: not installed\n", id)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", id, state)
			return nil
		},
	}
}

func readMSRCmd() *cobra.Command {
	var (
		shift uint
		width uint
	)

	cmd := &cobra.Command{
		Use:   "read-msr <index>",
		Short: "Read a model-specific register",
		Long: `Install and open the driver, read one model-specific register and remove
the driver again (unless --reuse found it already installed).

Examples:
  # Read MSR_TEMPERATURE_TARGET
  ring0 read-msr 0x1A2

  # Extract TjMax (bits 16-23)
  ring0 read-msr 0x1A2 --shift 16 --width 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			s, err := startDriver(true)
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.ReadMSR(index)
			if err != nil {
				return err
			}

			fmt.Printf("MSR 0x%X = 0x%016X (edx=0x%08X eax=0x%08X)\n", index, v, msr.High(v), msr.Low(v))
			if width > 0 {
				fmt.Printf("bits [%d+%d] = %d\n", shift, width, msr.Extract(v, shift, width))
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&shift, "shift", 0, "Bit offset of a field to extract")
	cmd.Flags().UintVar(&width, "width", 0, "Bit width of a field to extract (0: none)")

	return cmd
}

func tableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table",
		Short: "List the driver's control codes",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%-22s %-8s %-10s %-8s %-10s\n", "Operation", "Function", "Method", "Access", "Code")
			fmt.Println(strings.Repeat("-", 62))
			for _, op := range winring0.Ops.Ops() {
				code, _ := winring0.Ops.Code(op.Name)
				fmt.Printf("%-22s 0x%-6X %-10s %-8s %-10s\n", op.Name, op.Function, op.Method, op.Access, code)
			}
		},
	}
}
