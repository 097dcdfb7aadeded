package output_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/output"
	"github.com/kiibohd/controller/usb/hid"
)

func report(head ...byte) []byte {
	b := make([]byte, output.KeyboardReportSize)
	copy(b, head)
	return b
}

func TestKeyboardReports(t *testing.T) {
	keyC := hid.KeyA + 2
	keyW := hid.KeyA + 22
	keyS := hid.KeyA + 18
	keyD := hid.KeyA + 3

	type testCase struct {
		name           string
		inputState     output.KeyboardState
		expectedReport []byte
	}

	cases := []testCase{
		{
			name:           "No keys, no modifiers",
			inputState:     output.KeyboardState{},
			expectedReport: report(),
		},
		{
			name:           "C",
			inputState:     output.PressKey(keyC),
			expectedReport: report(0x00, 0x00, 0x40),
		},
		{
			name:           "CTRL+C",
			inputState:     output.PressKeyWithMod(hid.ModLeftCtrl, keyC),
			expectedReport: report(0x01, 0x00, 0x40),
		},
		{
			name:           "SHIFT+C",
			inputState:     output.PressKeyWithMod(hid.ModLeftShift, keyC),
			expectedReport: report(0x02, 0x00, 0x40),
		},
		{
			name:           "Modifier usage folds into the modifier byte",
			inputState:     output.PressKey(hid.KeyLeftAlt, keyC),
			expectedReport: report(0x04, 0x00, 0x40),
		},
		{
			name:           "WASD",
			inputState:     output.PressKey(keyW, hid.KeyA, keyS, keyD),
			expectedReport: report(0x00, 0x00, 0x90, 0x00, 0x40, 0x04),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedReport, tc.inputState.BuildReport())
		})
	}
}

func TestStateFlush(t *testing.T) {
	s := output.New(log.Discard())

	_, changed := s.Flush()
	assert.False(t, changed)

	s.Key(hid.KeyA, true)
	s.Consumer(0xE2, true)
	s.System(0x81, true)
	r, changed := s.Flush()
	assert.True(t, changed)
	assert.Equal(t, report(0x00, 0x00, 0x10), r.Keyboard)
	assert.Equal(t, []byte{0xE2, 0x00}, r.Consumer)
	assert.Equal(t, []byte{0x81}, r.System)

	// Pressing an already pressed key is not a change.
	s.Key(hid.KeyA, true)
	_, changed = s.Flush()
	assert.False(t, changed)

	// Releasing a consumer usage that is not active leaves the active one.
	s.Consumer(0xE9, false)
	r, _ = s.Flush()
	assert.Equal(t, []byte{0xE2, 0x00}, r.Consumer)

	s.Key(hid.KeyA, false)
	s.Consumer(0xE2, false)
	s.System(0x81, false)
	r, changed = s.Flush()
	assert.True(t, changed)
	assert.Equal(t, report(), r.Keyboard)
	assert.Equal(t, []byte{0x00, 0x00}, r.Consumer)
	assert.Equal(t, []byte{0x00}, r.System)
}

func TestSetLEDs(t *testing.T) {
	s := output.New(log.Discard())
	assert.Error(t, s.SetLEDs(nil))
	assert.Error(t, s.SetLEDs([]byte{1, 2}))

	assert.NoError(t, s.SetLEDs([]byte{0xFF}))
	assert.Equal(t, hid.LEDNumLock|hid.LEDCapsLock|hid.LEDScrollLock|hid.LEDCompose|hid.LEDKana, s.LEDs())
}

func TestDescriptor(t *testing.T) {
	d := output.Descriptor(0x1C11, 0xB04D, "serial")
	cfg, err := d.ConfigurationBytes()
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, byte(9), cfg[0])
	assert.Equal(t, byte(len(cfg)), cfg[2])
	assert.Equal(t, byte(len(cfg)>>8), cfg[3])
	assert.Equal(t, byte(3), cfg[4], "three HID interfaces")

	s, ok := d.StringBytes(3)
	assert.True(t, ok)
	assert.Equal(t, []byte{14, 0x03, 's', 0, 'e', 0, 'r', 0, 'i', 0, 'a', 0, 'l', 0}, []byte(s))
}
