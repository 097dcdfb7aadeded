// Package flash is the flash programming backend of the bootloader.
//
// Writes arrive one transfer-size block at a time. The caller asks for a
// staging buffer for the block, fills it and then programs it. Blocks below
// the application origin belong to the bootloader and are refused unless the
// backend has been unlocked with UnlockMagic.
package flash

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiibohd/controller/internal/log"
)

// UnlockMagic unlocks the bootloader region for erase and program.
const UnlockMagic uint32 = 0x00023000

// Erased is the value of an erased flash byte.
const Erased = 0xFF

var (
	ErrAlignment = errors.New("flash: unaligned address")
	ErrLength    = errors.New("flash: length must equal the transfer size")
	ErrRange     = errors.New("flash: address out of range")
	ErrLocked    = errors.New("flash: bootloader region locked")
	ErrStaging   = errors.New("flash: block was not staged")

	// Faults reported by the flash controller.
	ErrCollision  = errors.New("flash: read collision")
	ErrAccess     = errors.New("flash: access error")
	ErrProtection = errors.New("flash: protection violation")
)

// Op is a flash controller operation.
type Op uint8

const (
	OpErase Op = iota
	OpProgram
)

func (o Op) String() string {
	if o == OpErase {
		return "erase"
	}
	return "program"
}

// FaultFunc lets a controller model fail an operation. It returns one of
// ErrCollision, ErrAccess or ErrProtection, or nil.
type FaultFunc func(op Op, addr uint32) error

// Stats counts controller operations.
type Stats struct {
	Erases   int
	Programs int
}

// Backend programs a Memory with the rules of a flash controller.
type Backend struct {
	geo     Geometry
	mem     Memory
	unlock  uint32
	staging []byte
	staged  uint32
	valid   bool
	fault   FaultFunc
	stats   Stats
	logger  *slog.Logger
}

// New returns a backend for mem laid out as geo.
func New(geo Geometry, mem Memory, logger *slog.Logger) (*Backend, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if len(mem.Bytes()) < int(geo.Size) {
		return nil, fmt.Errorf("flash: memory holds %d bytes, geometry needs %d", len(mem.Bytes()), geo.Size)
	}
	return &Backend{
		geo:     geo,
		mem:     mem,
		staging: make([]byte, geo.TransferSize),
		logger:  log.Component(logger, "flash"),
	}, nil
}

// Geometry returns the flash layout.
func (b *Backend) Geometry() Geometry { return b.geo }

// Stats returns the operation counters.
func (b *Backend) Stats() Stats { return b.stats }

// SetFault installs a controller fault model.
func (b *Backend) SetFault(f FaultFunc) { b.fault = f }

// Unlock stores magic. The bootloader region is writable while it equals
// UnlockMagic.
func (b *Backend) Unlock(magic uint32) { b.unlock = magic }

// Lock protects the bootloader region again.
func (b *Backend) Lock() { b.unlock = 0 }

func (b *Backend) check(addr uint32, n uint32) error {
	if uint64(addr)+uint64(n) > uint64(b.geo.Size) {
		return fmt.Errorf("%w: 0x%08x+%d", ErrRange, addr, n)
	}
	if addr < b.geo.AppOrigin && b.unlock != UnlockMagic {
		return fmt.Errorf("%w: 0x%08x", ErrLocked, addr)
	}
	return nil
}

// EraseSector erases the sector starting at addr.
func (b *Backend) EraseSector(addr uint32) error {
	if addr%b.geo.SectorSize != 0 {
		return fmt.Errorf("%w: 0x%08x", ErrAlignment, addr)
	}
	if err := b.check(addr, b.geo.SectorSize); err != nil {
		return err
	}
	if b.fault != nil {
		if err := b.fault(OpErase, addr); err != nil {
			return err
		}
	}
	fill(b.mem.Bytes()[addr:addr+b.geo.SectorSize], Erased)
	b.stats.Erases++
	b.logger.Debug("erase", "addr", fmt.Sprintf("0x%08x", addr))
	return nil
}

// StagingArea returns the buffer block addr is written through, or nil
// when addr is not transfer aligned, n exceeds the transfer size or the
// block lies outside the flash.
func (b *Backend) StagingArea(addr uint32, n int) []byte {
	if addr%b.geo.TransferSize != 0 || n <= 0 || n > int(b.geo.TransferSize) {
		return nil
	}
	if uint64(addr)+uint64(b.geo.TransferSize) > uint64(b.geo.Size) {
		return nil
	}
	fill(b.staging, Erased)
	b.staged = addr
	b.valid = true
	return b.staging[:n]
}

// ProgramSector writes the staged block to addr. n must equal the transfer
// size. The containing sector is erased first unless the target already
// reads erased; the rest of the sector is preserved.
func (b *Backend) ProgramSector(addr uint32, n int) error {
	if n != int(b.geo.TransferSize) {
		return fmt.Errorf("%w: %d", ErrLength, n)
	}
	if addr%b.geo.TransferSize != 0 {
		return fmt.Errorf("%w: 0x%08x", ErrAlignment, addr)
	}
	if err := b.check(addr, uint32(n)); err != nil {
		return err
	}
	if !b.valid || b.staged != addr {
		return fmt.Errorf("%w: 0x%08x", ErrStaging, addr)
	}

	mem := b.mem.Bytes()
	target := mem[addr : addr+uint32(n)]
	if !blank(target) {
		sector := addr - addr%b.geo.SectorSize
		keep := bytes.Clone(mem[sector : sector+b.geo.SectorSize])
		if err := b.EraseSector(sector); err != nil {
			return err
		}
		off := addr - sector
		copy(mem[sector:sector+off], keep[:off])
		copy(mem[addr+uint32(n):sector+b.geo.SectorSize], keep[off+uint32(n):])
	}

	if b.fault != nil {
		if err := b.fault(OpProgram, addr); err != nil {
			return err
		}
	}
	copy(target, b.staging)
	b.valid = false
	b.stats.Programs++
	b.logger.Debug("program", "addr", fmt.Sprintf("0x%08x", addr), "len", n)
	return nil
}

// Read returns up to n bytes at addr, clipped to the end of flash.
func (b *Backend) Read(addr uint32, n int) []byte {
	mem := b.mem.Bytes()[:b.geo.Size]
	if addr >= uint32(len(mem)) {
		return nil
	}
	end := uint64(addr) + uint64(n)
	if end > uint64(len(mem)) {
		end = uint64(len(mem))
	}
	return mem[addr:end]
}

// Blank reports whether n bytes at addr read erased.
func (b *Backend) Blank(addr uint32, n int) bool {
	return blank(b.Read(addr, n))
}

// Sync flushes the backing memory.
func (b *Backend) Sync() error { return b.mem.Sync() }

func blank(p []byte) bool {
	for _, c := range p {
		if c != Erased {
			return false
		}
	}
	return true
}

func fill(p []byte, v byte) {
	for i := range p {
		p[i] = v
	}
}
