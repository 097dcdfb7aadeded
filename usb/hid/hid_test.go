package hid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiibohd/controller/usb/hid"
)

func TestItemEncoding(t *testing.T) {
	type testCase struct {
		name     string
		item     hid.Item
		expected hid.Data
	}
	cases := []testCase{
		{name: "usage page", item: hid.UsagePage{Page: hid.UsagePageKeyboard}, expected: hid.Data{0x05, 0x07}},
		{name: "two byte usage", item: hid.Usage{Usage: 0x0123}, expected: hid.Data{0x0A, 0x23, 0x01}},
		{name: "usage maximum", item: hid.UsageMaximum{Max: 0xFF}, expected: hid.Data{0x29, 0xFF}},
		{name: "negative logical minimum", item: hid.LogicalMinimum{Min: -127}, expected: hid.Data{0x15, 0x81}},
		{name: "logical maximum 255 needs two bytes", item: hid.LogicalMaximum{Max: 255}, expected: hid.Data{0x26, 0xFF, 0x00}},
		{name: "four byte logical maximum", item: hid.LogicalMaximum{Max: 0x10000}, expected: hid.Data{0x27, 0x00, 0x00, 0x01, 0x00}},
		{name: "report count 256", item: hid.ReportCount{Count: 256}, expected: hid.Data{0x96, 0x00, 0x01}},
		{name: "input", item: hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs}, expected: hid.Data{0x81, 0x02}},
		{name: "output constant", item: hid.Output{Flags: hid.MainConst}, expected: hid.Data{0x91, 0x01}},
		{
			name:     "collection closes itself",
			item:     hid.Collection{Kind: hid.CollectionApplication, Items: []hid.Item{hid.ReportSize{Bits: 8}}},
			expected: hid.Data{0xA1, 0x01, 0x75, 0x08, 0xC0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := hid.Report{Items: []hid.Item{tc.item}}.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNilItem(t *testing.T) {
	_, err := hid.Report{Items: []hid.Item{hid.Collection{Items: []hid.Item{nil}}}}.Bytes()
	assert.Error(t, err)
}

func TestKeyboardReport(t *testing.T) {
	b, err := hid.KeyboardReport().Bytes()
	require.NoError(t, err)
	assert.Equal(t, hid.Data{0x05, 0x01, 0x09, 0x06, 0xA1, 0x01}, b[:6])
	assert.Equal(t, byte(0xC0), b[len(b)-1])
}

func TestKeyboardUsage(t *testing.T) {
	type testCase struct {
		name     string
		expected uint8
		ok       bool
	}
	cases := []testCase{
		{name: "a", expected: hid.KeyA, ok: true},
		{name: "Z", expected: hid.KeyZ, ok: true},
		{name: "1", expected: hid.Key1, ok: true},
		{name: "0", expected: hid.Key0, ok: true},
		{name: "F5", expected: hid.KeyF1 + 4, ok: true},
		{name: "F12", expected: hid.KeyF12, ok: true},
		{name: "Enter", expected: hid.KeyEnter, ok: true},
		{name: "LShift", expected: hid.KeyLeftShift, ok: true},
		{name: ";", expected: hid.KeySemicolon, ok: true},
		{name: "F13"},
		{name: "Fx"},
		{name: "Hyper"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := hid.KeyboardUsage(tc.name)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestIsModifier(t *testing.T) {
	assert.True(t, hid.IsModifier(hid.KeyLeftCtrl))
	assert.True(t, hid.IsModifier(hid.KeyRightGUI))
	assert.False(t, hid.IsModifier(hid.KeyApp))
}
