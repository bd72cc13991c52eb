// Package version formats build version strings.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Product is the name printed by the version command.
const Product = "ring0 (privileged MSR telemetry)"

// Info describes a build and the driver it is configured to load.
type Info struct {
	Version   string
	Commit    string
	BuildTime string

	// Driver and DeviceType are the configured driver identity and its
	// control-code device type. Both are optional.
	Driver     string
	DeviceType uint32
}

// New returns build info with empty ldflags values filled in.
func New(version, commit, buildTime string) Info {
	if version == "" {
		version = "dev"
	}
	return Info{Version: version, Commit: commit, BuildTime: buildTime}
}

// Short returns "<version>-<commit>" with the commit cut to seven characters.
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s-%s", i.Version, commit)
}

// String returns the multi-line report printed by "ring0 version".
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintln(&b, Product)
	fmt.Fprintf(&b, "Version:    %s\n", i.Version)
	fmt.Fprintf(&b, "Commit:     %s\n", orUnknown(i.Commit))
	fmt.Fprintf(&b, "Built:      %s\n", orUnknown(i.BuildTime))
	if i.Driver != "" {
		fmt.Fprintf(&b, "Driver:     %s (device type 0x%04X)\n", i.Driver, i.DeviceType)
	}
	fmt.Fprintf(&b, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "OS/Arch:    %s/%s", runtime.GOOS, runtime.GOARCH)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
