package cmd

import (
	"fmt"
	"log/slog"

	"github.com/kiibohd/controller/bootloader/chip"
	"github.com/kiibohd/controller/bootloader/flash"
	"github.com/kiibohd/controller/internal/configpaths"
)

// Keygen regenerates the secure key registers, as a bootloader entry does,
// and stores them in the key file.
type Keygen struct {
	KeyFile string `help:"Secure key register file (default: per-user config dir)" type:"path" env:"KIIBOHD_KEY_FILE"`
	Part    string `help:"Part the key is generated for" default:"mk20dx256" enum:"${parts}"`
}

// Run is called by Kong when the keygen command is executed.
func (c *Keygen) Run(logger *slog.Logger) error {
	path := c.KeyFile
	if path == "" {
		var err error
		if path, err = configpaths.KeyFile(); err != nil {
			return err
		}
	}
	geo, err := flash.Part(c.Part)
	if err != nil {
		return err
	}
	fb, err := flash.New(geo, flash.NewMemory(geo.Size), logger)
	if err != nil {
		return err
	}

	ch := chip.New(fb, chip.Options{Secure: true, Logger: logger})
	if regs, err := chip.LoadRegisters(path); err == nil {
		ch.SetRegisters(regs)
	}
	ch.Reset()
	if err := chip.SaveRegisters(path, ch.Registers()); err != nil {
		return err
	}
	logger.Info("Secure key generated", "file", path)
	fmt.Printf("%x\n", ch.Registers().Key())
	return nil
}

// Parts lists the supported flash layouts.
type Parts struct{}

// Run is called by Kong when the parts command is executed.
func (c *Parts) Run() error {
	for _, name := range flash.Parts() {
		geo, err := flash.Part(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s flash=%-7d sector=%-5d transfer=%-5d app=0x%05x\n",
			name, geo.Size, geo.SectorSize, geo.TransferSize, geo.AppOrigin)
	}
	return nil
}
