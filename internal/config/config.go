// Package config loads ring0 configuration from a YAML file and RING0_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RING0_DRIVER_IDENTITY.
const EnvPrefix = "RING0"

// Config holds all application configuration.
type Config struct {
	Driver DriverConfig `yaml:"driver"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Watch  WatchConfig  `yaml:"watch"`
}

// DriverConfig describes the kernel driver to install.
type DriverConfig struct {
	Identity    string `yaml:"identity"`
	Description string `yaml:"description"`
	DeviceType  uint32 `yaml:"device_type" split_words:"true"`
	BinaryX64   string `yaml:"binary_x64" split_words:"true"`
	BinaryX86   string `yaml:"binary_x86" split_words:"true"`
	// Path points at an already installed driver image and takes
	// precedence over the per-architecture binaries.
	Path string `yaml:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig holds sample store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig holds sampling configuration.
type WatchConfig struct {
	Every time.Duration `yaml:"every"`

	// Listen is the address for the metrics endpoint; empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Driver: DriverConfig{
			Identity:    "WinRing0_1_2_0",
			Description: "WinRing0 MSR access driver",
			DeviceType:  40000,
			BinaryX64:   "WinRing0x64.sys",
			BinaryX86:   "WinRing0.sys",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Watch: WatchConfig{
			Every: 2 * time.Second,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path, if path is
// non-empty, and then with environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Driver.Identity == "" {
		return errors.New("driver identity is required")
	}
	if strings.ContainsAny(c.Driver.Identity, `\/`) {
		return fmt.Errorf("invalid driver identity: %s", c.Driver.Identity)
	}
	if c.Driver.DeviceType == 0 || c.Driver.DeviceType > 0xFFFF {
		return fmt.Errorf("invalid device type: %d", c.Driver.DeviceType)
	}
	if c.Driver.Path == "" && c.Driver.BinaryX64 == "" && c.Driver.BinaryX86 == "" {
		return errors.New("a driver path or binary is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	if c.Store.Path == "" {
		return errors.New("store path is required")
	}

	if c.Watch.Every < time.Second {
		return fmt.Errorf("watch interval too short: %s", c.Watch.Every)
	}

	return nil
}

// defaultStorePath returns RING0_DB_PATH or ~/.ring0/ring0.db.
func defaultStorePath() string {
	if p := os.Getenv("RING0_DB_PATH"); p != "" {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "ring0.db"
	}
	return filepath.Join(home, ".ring0", "ring0.db")
}
