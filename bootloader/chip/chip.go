// Package chip models the part-specific side of the bootloader: the secure
// key registers that gate firmware downloads, post-download cleanup and the
// debug halt bit.
package chip

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/blake2b"

	"github.com/kiibohd/controller/bootloader/flash"
	"github.com/kiibohd/controller/internal/log"
)

// KeyLen is the length of the key section at the start of a download.
const KeyLen = 8

// ErrValidation is returned when the first block of a download does not
// carry the expected key.
var ErrValidation = errors.New("chip: secure key mismatch")

// Registers are the battery-backed secure key registers. Old holds the pair
// that was current before the last reset.
type Registers struct {
	Secure1 uint32 `yaml:"secure1"`
	Secure2 uint32 `yaml:"secure2"`
	Old1    uint32 `yaml:"old1"`
	Old2    uint32 `yaml:"old2"`
}

// Zero reports whether the secure pair is unset.
func (r Registers) Zero() bool { return r.Secure1 == 0 && r.Secure2 == 0 }

// Key returns the key section matching the secure pair.
func (r Registers) Key() []byte {
	b := make([]byte, KeyLen)
	binary.LittleEndian.PutUint32(b[0:4], r.Secure1)
	binary.LittleEndian.PutUint32(b[4:8], r.Secure2)
	return b
}

// Matches reports whether block starts with the secure pair.
func (r Registers) Matches(block []byte) bool {
	return len(block) >= KeyLen && bytes.Equal(block[:KeyLen], r.Key())
}

// Options configures a Chip.
type Options struct {
	// Secure enables key regeneration on every reset. With it off the
	// registers stay zero and downloads are not gated.
	Secure bool
	// Entropy seeds key regeneration. Defaults to crypto/rand.
	Entropy io.Reader
	Logger  *slog.Logger
}

// Chip is an emulated part.
type Chip struct {
	regs      Registers
	flash     *flash.Backend
	secure    bool
	entropy   io.Reader
	debugHalt bool
	resets    int
	completes int
	logger    *slog.Logger
}

// New returns a chip programming through fb.
func New(fb *flash.Backend, opts Options) *Chip {
	c := &Chip{
		flash:     fb,
		secure:    opts.Secure,
		entropy:   opts.Entropy,
		debugHalt: true,
		logger:    log.Component(opts.Logger, "chip"),
	}
	if c.entropy == nil {
		c.entropy = rand.Reader
	}
	return c
}

// Registers returns the secure key registers.
func (c *Chip) Registers() Registers { return c.regs }

// SetRegisters restores the registers, e.g. from a key file.
func (c *Chip) SetRegisters(r Registers) { c.regs = r }

// DebugHalt reports whether the part would halt in the debugger on reset.
func (c *Chip) DebugHalt() bool { return c.debugHalt }

// Completed returns the number of finished downloads.
func (c *Chip) Completed() int { return c.completes }

// Reset runs at every bootloader entry. It keeps the current pair as the old
// one and regenerates the secure pair.
func (c *Chip) Reset() {
	c.resets++
	c.flash.Lock()
	if !c.secure {
		return
	}
	c.regs.Old1, c.regs.Old2 = c.regs.Secure1, c.regs.Secure2
	s1, s2, err := c.generate()
	if err != nil {
		// Keep the previous pair; downloads stay gated by it.
		c.logger.Error("secure key regeneration failed", "error", err)
		return
	}
	c.regs.Secure1, c.regs.Secure2 = s1, s2
	c.logger.Debug("secure key regenerated")
}

// generate derives a new non-zero pair from fresh entropy and the old pair.
func (c *Chip) generate() (uint32, uint32, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(c.entropy, seed); err != nil {
		return 0, 0, fmt.Errorf("chip: read entropy: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return 0, 0, err
	}
	h.Write(seed)
	_ = binary.Write(h, binary.LittleEndian, [3]uint32{c.regs.Old1, c.regs.Old2, uint32(c.resets)})
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint32(sum[0:4])
	s2 := binary.LittleEndian.Uint32(sum[4:8])
	if s1 == 0 && s2 == 0 {
		s1 = 1
	}
	return s1, s2, nil
}

// Setup runs once before the main loop.
func (c *Chip) Setup() {
	c.logger.Info("bootloader ready",
		"secure", !c.regs.Zero(),
		"app_origin", fmt.Sprintf("0x%08x", c.flash.Geometry().AppOrigin),
		"transfer_size", c.flash.Geometry().TransferSize)
}

// SetupDelayed runs once after the USB stack is up.
func (c *Chip) SetupDelayed() {}

// Process runs every main loop iteration.
func (c *Chip) Process() {}

// Validate inspects the first block of a download. It returns the number of
// leading bytes that form a key section (0 when there is none) or
// ErrValidation.
//
// With the secure pair unset, a blank part still accepts an all-zero key
// block so that hosts which always send one keep working. The key must be a
// block of its own there; a longer block is firmware, even when it starts
// with zeros.
func (c *Chip) Validate(block []byte) (int, error) {
	if !c.regs.Zero() {
		if c.regs.Matches(block) {
			return KeyLen, nil
		}
		return -1, ErrValidation
	}
	geo := c.flash.Geometry()
	if len(block) == KeyLen && c.flash.Blank(geo.AppOrigin, int(geo.AppSize())) && allZero(block[:KeyLen]) {
		return KeyLen, nil
	}
	return 0, nil
}

// DownloadComplete flushes the written image and locks flash again.
func (c *Chip) DownloadComplete() {
	c.completes++
	if err := c.flash.Sync(); err != nil {
		c.logger.Error("flash sync failed", "error", err)
	}
	c.flash.Lock()
	c.logger.Info("download complete")
}

// DisableDebugHalt clears the debug halt bit so the next reset boots the
// application.
func (c *Chip) DisableDebugHalt() {
	c.debugHalt = false
}

func allZero(p []byte) bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}
