package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kiibohd/controller/bootloader"
	"github.com/kiibohd/controller/bootloader/chip"
	"github.com/kiibohd/controller/bootloader/dfu"
	"github.com/kiibohd/controller/bootloader/flash"
	"github.com/kiibohd/controller/internal/configpaths"
	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/usb"
)

// Bootloader identifiers of the emulated device.
const (
	BootloaderVendor  = 0x1C11
	BootloaderProduct = 0xB007
)

// Device selects the emulated bootloader the dfu commands talk to.
type Device struct {
	Image   string `help:"Flash image file, created erased when missing" default:"flash.bin" type:"path" env:"KIIBOHD_FLASH_IMAGE"`
	Part    string `help:"Part whose flash layout the image follows" default:"mk20dx256" enum:"${parts}" env:"KIIBOHD_PART"`
	Secure  bool   `help:"Gate downloads behind the secure key" env:"KIIBOHD_SECURE"`
	KeyFile string `help:"Secure key register file (default: per-user config dir)" type:"path" env:"KIIBOHD_KEY_FILE"`
	Serial  string `help:"USB serial number" default:"emulated"`
}

// Dfu groups the bootloader commands.
type Dfu struct {
	Device `embed:""`

	Download DfuDownload `cmd:"" help:"Download a firmware image into the application region"`
	Upload   DfuUpload   `cmd:"" help:"Upload the application region"`
	Info     DfuInfo     `cmd:"" help:"Show the bootloader descriptors and secure key state"`
}

// session is one emulated bootloader entry.
type session struct {
	Boot  *bootloader.Bootloader
	Host  *bootloader.Host
	Chip  *chip.Chip
	Flash *flash.Backend

	mem     flash.Memory
	keyFile string
	resets  int
	logger  *slog.Logger
}

func (d *Device) open(logger *slog.Logger, raw log.RawLogger) (*session, error) {
	geo, err := flash.Part(d.Part)
	if err != nil {
		return nil, err
	}
	mem, err := flash.OpenImage(d.Image, geo.Size)
	if err != nil {
		return nil, err
	}
	fb, err := flash.New(geo, mem, logger)
	if err != nil {
		_ = mem.Close()
		return nil, err
	}

	s := &session{Flash: fb, mem: mem, keyFile: d.KeyFile, logger: logger}
	if s.keyFile == "" {
		if s.keyFile, err = configpaths.KeyFile(); err != nil {
			_ = mem.Close()
			return nil, err
		}
	}

	s.Chip = chip.New(fb, chip.Options{Secure: d.Secure, Logger: logger})
	if d.Secure {
		regs, err := chip.LoadRegisters(s.keyFile)
		switch {
		case err == nil:
			s.Chip.SetRegisters(regs)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("No key file yet, starting from zero registers", "file", s.keyFile)
		default:
			_ = mem.Close()
			return nil, err
		}
	}

	handler := dfu.New(dfu.Options{
		Targets:      []dfu.Target{dfu.NewFlashTarget(fb)},
		TransferSize: int(geo.TransferSize),
		Validator:    s.Chip,
		Reset: func(alt uint8) {
			s.resets++
			logger.Info("Device reset", "alt", alt)
		},
		MSVendorCode: usb.MSVendorCode,
		Logger:       logger,
		Raw:          raw,
	})
	desc := bootloader.Descriptor(BootloaderVendor, BootloaderProduct, d.Serial, uint16(geo.TransferSize), []string{"Kiibohd Firmware"})
	s.Boot = bootloader.New(s.Chip, nil, handler, bootloader.Options{Descriptor: desc, Logger: logger})
	s.Host = bootloader.NewHost(s.Boot)

	s.Boot.Start()
	if d.Secure {
		// The host learns the key out of band, through this file.
		if err := chip.SaveRegisters(s.keyFile, s.Chip.Registers()); err != nil {
			_ = mem.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) Close() error {
	return s.mem.Close()
}

// DfuDownload writes a firmware image.
type DfuDownload struct {
	Firmware string `arg:"" help:"Firmware binary" type:"existingfile"`
	Key      string `help:"Key section to send, hex encoded (default: the current secure key)"`
}

// Run is called by Kong when the dfu download command is executed.
func (c *DfuDownload) Run(d *Dfu, logger *slog.Logger, raw log.RawLogger) error {
	fw, err := os.ReadFile(c.Firmware)
	if err != nil {
		return err
	}
	s, err := d.open(logger, raw)
	if err != nil {
		return err
	}
	defer s.Close()

	var key []byte
	switch {
	case c.Key != "":
		if key, err = hex.DecodeString(c.Key); err != nil {
			return fmt.Errorf("decode key: %w", err)
		}
	case d.Secure:
		key = s.Chip.Registers().Key()
	}

	logger.Info("Downloading firmware", "file", c.Firmware, "bytes", len(fw), "keyed", len(key) > 0)
	if err := s.Host.Download(fw, key); err != nil {
		if errors.Is(err, bootloader.ErrNoResponse) && s.resets > 0 {
			return fmt.Errorf("device reset during download, key rejected: %w", err)
		}
		return err
	}
	logger.Info("Download complete", "erases", s.Flash.Stats().Erases, "programs", s.Flash.Stats().Programs, "boots_app", !s.Chip.DebugHalt())
	return nil
}

// DfuUpload reads the application region back.
type DfuUpload struct {
	Output string `arg:"" help:"Output file" type:"path"`
}

// Run is called by Kong when the dfu upload command is executed.
func (c *DfuUpload) Run(d *Dfu, logger *slog.Logger, raw log.RawLogger) error {
	s, err := d.open(logger, raw)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := s.Host.Upload()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return err
	}
	logger.Info("Upload complete", "file", c.Output, "bytes", len(data))
	return nil
}

// DfuInfo prints what a host sees on enumeration.
type DfuInfo struct{}

// Run is called by Kong when the dfu info command is executed.
func (c *DfuInfo) Run(d *Dfu, logger *slog.Logger, raw log.RawLogger) error {
	s, err := d.open(logger, raw)
	if err != nil {
		return err
	}
	defer s.Close()

	dev, err := s.Host.Descriptor(usb.DeviceDescType, 0, usb.DeviceDescLen)
	if err != nil {
		return err
	}
	cfg, err := s.Host.Descriptor(usb.ConfigDescType, 0, 0xFFFF)
	if err != nil {
		return err
	}
	compat, err := s.Host.CompatID()
	if err != nil {
		return err
	}
	st, err := s.Host.GetStatus()
	if err != nil {
		return err
	}
	geo := s.Flash.Geometry()
	fmt.Printf("part:          %s\n", d.Part)
	fmt.Printf("app region:    0x%08x-0x%08x\n", geo.AppOrigin, geo.End())
	fmt.Printf("transfer size: %d\n", geo.TransferSize)
	fmt.Printf("secure:        %t\n", !s.Chip.Registers().Zero())
	fmt.Printf("state:         %s (%s)\n", st.State, st.Status)
	fmt.Printf("device:        %s\n", hex.EncodeToString(dev))
	fmt.Printf("configuration: %s\n", hex.EncodeToString(cfg))
	fmt.Printf("compat id:     %s\n", hex.EncodeToString(compat))
	return nil
}
