package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileDeviceUnknown is the FILE_DEVICE_UNKNOWN device type, used when a
// builder is not given one.
const FileDeviceUnknown uint32 = 0x22

// Descriptor is the immutable description of a kernel driver: what the
// service is called, which device type its control codes use and where its
// binary lives on disk.
type Descriptor struct {
	identity    string
	description string
	deviceType  uint32
	path        string
	binary      []byte
}

// Identity returns the service name, which is also the device node name.
func (d *Descriptor) Identity() string { return d.identity }

// Description returns the human readable display name.
func (d *Descriptor) Description() string { return d.description }

// DeviceType returns the device type control codes are built with.
func (d *Descriptor) DeviceType() uint32 { return d.deviceType }

// Path returns the on-disk location of the driver binary.
func (d *Descriptor) Path() string { return d.path }

// Binary returns a copy of the in-memory driver image, or nil when the
// descriptor was built from a path.
func (d *Descriptor) Binary() []byte { return bytes.Clone(d.binary) }

// Staged reports whether the binary was written out by the builder.
func (d *Descriptor) Staged() bool { return len(d.binary) > 0 }

// Builder assembles a Descriptor. Exactly one binary source, Path or
// Binary, must be set.
//
//	desc, err := driver.NewBuilder("WinRing0_1_2_0").
//		Description("WinRing0 driver").
//		DeviceType(40000).
//		Binary(image).
//		Build()
type Builder struct {
	identity    string
	description string
	deviceType  uint32
	path        string
	binary      []byte
	stageDir    string
}

// NewBuilder starts a descriptor for the given service identity.
func NewBuilder(identity string) *Builder {
	return &Builder{
		identity:   identity,
		deviceType: FileDeviceUnknown,
	}
}

// Description sets the service display name.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// DeviceType sets the device type (defaults to FILE_DEVICE_UNKNOWN).
func (b *Builder) DeviceType(deviceType uint32) *Builder {
	b.deviceType = deviceType
	return b
}

// Path points the descriptor at an existing driver binary.
func (b *Builder) Path(path string) *Builder {
	b.path = path
	return b
}

// Binary supplies the driver image in memory. Build writes it to the stage
// directory.
func (b *Builder) Binary(image []byte) *Builder {
	b.binary = bytes.Clone(image)
	return b
}

// StageDir overrides the directory in-memory images are written to
// (defaults to os.TempDir()).
func (b *Builder) StageDir(dir string) *Builder {
	b.stageDir = dir
	return b
}

// Build validates the inputs and returns the descriptor. When the image was
// supplied in memory it is written to <stage dir>/<identity>.sys, replacing
// any stale copy left by an earlier run.
func (b *Builder) Build() (*Descriptor, error) {
	if b.identity == "" {
		return nil, &ValidationError{Field: "identity", Reason: "is required"}
	}
	if strings.ContainsAny(b.identity, `\/`) {
		return nil, &ValidationError{Field: "identity", Reason: "must not contain path separators"}
	}

	hasBinary := len(b.binary) > 0
	hasPath := b.path != ""
	switch {
	case !hasBinary && !hasPath:
		return nil, &ValidationError{Field: "binary", Reason: "requires either a driver path or an in-memory image"}
	case hasBinary && hasPath:
		return nil, &ValidationError{Field: "binary", Reason: "accepts a driver path or an in-memory image, not both"}
	}

	desc := &Descriptor{
		identity:    b.identity,
		description: b.description,
		deviceType:  b.deviceType,
		binary:      b.binary,
	}

	if hasPath {
		if _, err := os.Stat(b.path); err != nil {
			return nil, &ValidationError{Field: "path", Reason: fmt.Sprintf("is not readable: %v", err)}
		}
		desc.path = b.path
		return desc, nil
	}

	path, err := b.stage()
	if err != nil {
		return nil, err
	}
	desc.path = path
	return desc, nil
}

func (b *Builder) stage() (string, error) {
	dir := b.stageDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create stage directory: %w", err)
	}

	path := filepath.Join(dir, b.identity+".sys")
	if err := os.WriteFile(path, b.binary, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage driver binary: %w", err)
	}
	return path, nil
}
