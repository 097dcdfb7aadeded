// Package configpaths resolves where kiibohd looks for its configuration
// and keeps its key files.
package configpaths

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "kiibohd"

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDir), nil
}

// ConfigCandidatePaths returns the configuration files to try, grouped by
// format. An explicit userCfg is the only candidate of its format; otherwise
// the working directory is tried before the user configuration directory.
func ConfigCandidatePaths(userCfg string) (jsonPaths, yamlPaths, tomlPaths []string) {
	if userCfg != "" {
		switch strings.ToLower(filepath.Ext(userCfg)) {
		case ".json":
			return []string{userCfg}, nil, nil
		case ".toml":
			return nil, nil, []string{userCfg}
		default:
			return nil, []string{userCfg}, nil
		}
	}

	dirs := []string{"."}
	if dir, err := DefaultConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		base := filepath.Join(dir, "config")
		jsonPaths = append(jsonPaths, base+".json")
		yamlPaths = append(yamlPaths, base+".yaml", base+".yml")
		tomlPaths = append(tomlPaths, base+".toml")
	}
	return jsonPaths, yamlPaths, tomlPaths
}

// KeyFile returns the default path of the secure key register file.
func KeyFile() (string, error) {
	dir, err := KeyFileDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secure.yaml"), nil
}
