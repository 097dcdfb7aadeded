//go:build !windows

package configpaths

import (
	"os"
	"path/filepath"
)

// KeyFileDir returns the directory holding the secure key register file.
// Flashing stations running as root keep it under /etc/kiibohd.
func KeyFileDir() (string, error) {
	if os.Geteuid() == 0 {
		return filepath.Join(string(os.PathSeparator), "etc", appDir), nil
	}
	return DefaultConfigDir()
}
