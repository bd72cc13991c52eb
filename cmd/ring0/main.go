package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/ring0/internal/config"
	"github.com/mscrnt/ring0/internal/logging"
	"github.com/mscrnt/ring0/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
	buildTime    string

	// Global flags
	configPath string
	logLevel   string
	reuse      bool

	cfg *config.Config
	log *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ring0",
		Short: "ring0 - privileged MSR telemetry",
		Long: `ring0 installs a WinRing0 kernel driver, reads model-specific registers
through it and derives CPU temperature and frequency from them.

Driver commands need Administrator privileges.`,
		Version:       version.New(buildVersion, buildCommit, buildTime).Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			log, err = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&reuse, "reuse", false, "Use an already installed driver service instead of failing")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(installCmd())
	rootCmd.AddCommand(uninstallCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(readMSRCmd())
	rootCmd.AddCommand(tableCmd())
	rootCmd.AddCommand(cpuCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.New(buildVersion, buildCommit, buildTime)
			info.Driver = cfg.Driver.Identity
			info.DeviceType = cfg.Driver.DeviceType
			fmt.Println(info)
		},
	}
}
