// Package config defines the CLI structure and configuration for kiibohd.
package config

import (
	"github.com/kiibohd/controller/internal/cmd"
)

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"KIIBOHD_LOG_LEVEL"`
	File    string `help:"Log file path (default: none; logs only to console)" env:"KIIBOHD_LOG_FILE"`
	RawFile string `help:"Raw USB control transfer log file path (default: none)" env:"KIIBOHD_LOG_RAW_FILE"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Log    `embed:"" prefix:"log."`
	Config string `help:"Configuration file (.json, .yaml or .toml)" type:"path" env:"KIIBOHD_CONFIG"`

	Simulate     cmd.Simulate     `cmd:"" help:"Run a keymap against a scripted event sequence"`
	Capabilities cmd.Capabilities `cmd:"" help:"List capabilities and their dispatch class"`
	Dfu          cmd.Dfu          `cmd:"" help:"Drive the emulated DFU bootloader"`
	Keygen       cmd.Keygen       `cmd:"" help:"Regenerate the bootloader secure key"`
	Parts        cmd.Parts        `cmd:"" help:"List supported flash layouts"`
	Install      cmd.Install      `cmd:"" help:"Grant the current user access to the bootloader and keyboard"`
	Uninstall    cmd.Uninstall    `cmd:"" help:"Remove what install set up"`
}
