//go:build windows

package configpaths

// KeyFileDir returns the directory holding the secure key register file.
func KeyFileDir() (string, error) {
	return DefaultConfigDir()
}
