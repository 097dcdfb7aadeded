package chip

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadRegisters reads registers saved by SaveRegisters.
func LoadRegisters(path string) (Registers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Registers{}, err
	}
	var r Registers
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Registers{}, fmt.Errorf("chip: parse %s: %w", path, err)
	}
	return r, nil
}

// SaveRegisters writes r to path, readable by the owner only.
func SaveRegisters(path string, r Registers) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
