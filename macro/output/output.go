// Package output holds the USB HID output state the result engine writes to
// and builds the reports sent to the host.
package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/usb/hid"
)

// Report sizes in bytes.
const (
	KeyboardReportSize = 34
	ConsumerReportSize = 2
	SystemReportSize   = 1
)

// KeyboardState is an NKRO keyboard report: a modifier byte, a reserved
// byte and a 256-bit usage bitmap.
type KeyboardState struct {
	Modifiers uint8
	KeyBitmap [32]uint8
}

// PressKey returns a KeyboardState with the given usages pressed.
func PressKey(keys ...uint8) KeyboardState {
	return PressKeyWithMod(0, keys...)
}

// PressKeyWithMod returns a KeyboardState with mods and keys pressed.
func PressKeyWithMod(mods uint8, keys ...uint8) KeyboardState {
	s := KeyboardState{Modifiers: mods}
	for _, k := range keys {
		s.set(k, true)
	}
	return s
}

func (s *KeyboardState) set(code uint8, pressed bool) {
	if hid.IsModifier(code) {
		bit := uint8(1) << (code - hid.KeyLeftCtrl)
		if pressed {
			s.Modifiers |= bit
		} else {
			s.Modifiers &^= bit
		}
		return
	}
	if pressed {
		s.KeyBitmap[code/8] |= 1 << (code % 8)
	} else {
		s.KeyBitmap[code/8] &^= 1 << (code % 8)
	}
}

// Pressed reports whether usage code is set.
func (s KeyboardState) Pressed(code uint8) bool {
	if hid.IsModifier(code) {
		return s.Modifiers&(1<<(code-hid.KeyLeftCtrl)) != 0
	}
	return s.KeyBitmap[code/8]&(1<<(code%8)) != 0
}

// BuildReport encodes the 34-byte input report.
func (s KeyboardState) BuildReport() []byte {
	b := make([]byte, KeyboardReportSize)
	b[0] = s.Modifiers
	copy(b[2:], s.KeyBitmap[:])
	return b
}

// State is the complete HID output state of the keyboard.
type State struct {
	mu       sync.Mutex
	keyboard KeyboardState
	consumer uint16
	system   uint8
	leds     uint8
	changed  bool
	logger   *slog.Logger
}

// New returns an empty State.
func New(logger *slog.Logger) *State {
	return &State{logger: log.Component(logger, "output")}
}

// Key presses or releases a keyboard usage.
func (s *State) Key(code uint8, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyboard.Pressed(code) == pressed {
		return
	}
	s.keyboard.set(code, pressed)
	s.changed = true
}

// Consumer sets or clears the active consumer control usage. Only one
// consumer usage is reported at a time.
func (s *State) Consumer(code uint16, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case pressed && s.consumer != code:
		s.consumer = code
	case !pressed && s.consumer == code:
		s.consumer = 0
	default:
		return
	}
	s.changed = true
}

// System sets or clears the active system control usage.
func (s *State) System(code uint8, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case pressed && s.system != code:
		s.system = code
	case !pressed && s.system == code:
		s.system = 0
	default:
		return
	}
	s.changed = true
}

// SetLEDs applies a keyboard LED output report from the host.
func (s *State) SetLEDs(report []byte) error {
	if len(report) != 1 {
		return fmt.Errorf("output: invalid LED report length %d", len(report))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leds = report[0] & (hid.LEDNumLock | hid.LEDCapsLock | hid.LEDScrollLock | hid.LEDCompose | hid.LEDKana)
	s.logger.Debug("leds", "mask", fmt.Sprintf("0x%02x", s.leds))
	return nil
}

// LEDs returns the last LED mask set by the host.
func (s *State) LEDs() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds
}

// Keyboard returns a copy of the keyboard report state.
func (s *State) Keyboard() KeyboardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyboard
}

// Reports is a snapshot of every report.
type Reports struct {
	Keyboard []byte
	Consumer []byte
	System   []byte
}

// Flush returns the current reports and whether anything changed since the
// previous Flush.
func (s *State) Flush() (Reports, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Reports{
		Keyboard: s.keyboard.BuildReport(),
		Consumer: binary.LittleEndian.AppendUint16(nil, s.consumer),
		System:   []byte{s.system},
	}
	changed := s.changed
	s.changed = false
	return r, changed
}

// Clear releases everything.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyboard = KeyboardState{}
	s.consumer = 0
	s.system = 0
	s.changed = true
}
