// Package bootloader ties the DFU interface, the chip and the device
// collaborators into the bootloader main loop and answers the standard
// control requests of the bootloader's USB device.
package bootloader

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiibohd/controller/bootloader/dfu"
	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/usb"
)

// Chip is the part-specific collaborator.
type Chip interface {
	dfu.Validator
	Reset()
	Setup()
	SetupDelayed()
	Process()
}

// Device is the board-specific collaborator, e.g. a companion MCU behind an
// alternate setting.
type Device interface {
	Reset()
	Setup()
	Process()
}

// Options configures a Bootloader.
type Options struct {
	Descriptor usb.Descriptor
	// Period is the main loop period of Run.
	Period time.Duration
	Logger *slog.Logger
}

// Bootloader is the bootloader main loop.
type Bootloader struct {
	chip   Chip
	device Device
	dfu    *dfu.Handler
	desc   usb.Descriptor
	config uint8
	period time.Duration
	logger *slog.Logger
}

// New returns a bootloader. device may be nil.
func New(chip Chip, device Device, handler *dfu.Handler, opts Options) *Bootloader {
	if opts.Period <= 0 {
		opts.Period = time.Millisecond
	}
	return &Bootloader{
		chip:   chip,
		device: device,
		dfu:    handler,
		desc:   opts.Descriptor,
		period: opts.Period,
		logger: log.Component(opts.Logger, "bootloader"),
	}
}

// DFU returns the DFU interface.
func (b *Bootloader) DFU() *dfu.Handler { return b.dfu }

// Start performs the reset-time and setup-time calls of every collaborator.
func (b *Bootloader) Start() {
	b.chip.Reset()
	if b.device != nil {
		b.device.Reset()
	}
	b.dfu.Reset()
	b.config = 0

	b.chip.Setup()
	if b.device != nil {
		b.device.Setup()
	}
	b.chip.SetupDelayed()
}

// Step runs one main loop iteration.
func (b *Bootloader) Step() {
	b.chip.Process()
	if b.device != nil {
		b.device.Process()
	}
}

// Run starts the bootloader and steps it until ctx is done.
func (b *Bootloader) Run(ctx context.Context) error {
	b.Start()
	t := time.NewTicker(b.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			b.Step()
		}
	}
}

// HandleSetup answers a control request of the bootloader device. Requests
// nobody handles are stalled.
func (b *Bootloader) HandleSetup(setup usb.SetupPacket, pipe usb.ControlPipe) {
	if setup.IsStandard() && b.handleStandard(setup, pipe) {
		return
	}
	if b.dfu.HandleSetup(setup, pipe) {
		return
	}
	b.logger.Debug("unhandled request", "setup", setup)
	pipe.Status(false)
}

func (b *Bootloader) handleStandard(setup usb.SetupPacket, pipe usb.ControlPipe) bool {
	switch setup.Request {
	case usb.RequestGetDescriptor:
		data, ok := b.descriptor(setup)
		if !ok {
			return false
		}
		if len(data) > int(setup.Length) {
			data = data[:setup.Length]
		}
		pipe.Tx(data)
		return true
	case usb.RequestSetConfiguration:
		b.config = uint8(setup.Value)
		pipe.Status(true)
		return true
	case usb.RequestGetConfiguration:
		pipe.Tx([]byte{b.config})
		return true
	case usb.RequestSetInterface:
		pipe.Status(b.dfu.SetAlt(uint8(setup.Value)))
		return true
	case usb.RequestGetInterface:
		pipe.Tx([]byte{b.dfu.Context().AltSetting})
		return true
	case usb.RequestSetAddress:
		pipe.Status(true)
		return true
	case usb.RequestGetStatus:
		// Bus powered, no remote wakeup.
		pipe.Tx([]byte{0, 0})
		return true
	}
	return false
}

func (b *Bootloader) descriptor(setup usb.SetupPacket) ([]byte, bool) {
	switch setup.DescriptorType() {
	case usb.DeviceDescType:
		return b.desc.Bytes(), true
	case usb.ConfigDescType:
		data, err := b.desc.ConfigurationBytes()
		if err != nil {
			b.logger.Error("configuration descriptor", "error", err)
			return nil, false
		}
		return data, true
	case usb.StringDescType:
		if setup.DescriptorIndex() == usb.MSOSStringIndex {
			return usb.MSOSStringDescriptor(usb.MSVendorCode), true
		}
		return b.desc.StringBytes(setup.DescriptorIndex())
	}
	return nil, false
}
