package winring0

import (
	"fmt"
	"os"
)

// Binaries locates the architecture-specific driver images.
type Binaries struct {
	X64 string
	X86 string
}

// Select returns the image path matching a GOARCH value. The driver runs
// in the kernel, so a 32-bit process on a 64-bit system still needs the
// 64-bit image; Select only sees the process architecture and leaves that
// case to the caller's configuration.
func (b Binaries) Select(arch string) (string, error) {
	var path string
	switch arch {
	case "amd64", "arm64":
		path = b.X64
	case "386", "arm":
		path = b.X86
	default:
		return "", fmt.Errorf("no driver image for architecture %s", arch)
	}
	if path == "" {
		return "", fmt.Errorf("no driver image configured for architecture %s", arch)
	}
	return path, nil
}

// Load reads the image for arch into memory.
func (b Binaries) Load(arch string) ([]byte, error) {
	path, err := b.Select(arch)
	if err != nil {
		return nil, err
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("driver image %s is empty", path)
	}
	return image, nil
}
