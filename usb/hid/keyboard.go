package hid

import "strings"

// Keyboard modifier bits of the first report byte.
const (
	ModLeftCtrl   uint8 = 1 << 0
	ModLeftShift  uint8 = 1 << 1
	ModLeftAlt    uint8 = 1 << 2
	ModLeftGUI    uint8 = 1 << 3
	ModRightCtrl  uint8 = 1 << 4
	ModRightShift uint8 = 1 << 5
	ModRightAlt   uint8 = 1 << 6
	ModRightGUI   uint8 = 1 << 7
)

// Keyboard usages (HID Usage Tables, page 0x07) that need a name.
const (
	KeyA          uint8 = 0x04
	KeyZ          uint8 = 0x1D
	Key1          uint8 = 0x1E
	Key0          uint8 = 0x27
	KeyEnter      uint8 = 0x28
	KeyEsc        uint8 = 0x29
	KeyBackspace  uint8 = 0x2A
	KeyTab        uint8 = 0x2B
	KeySpace      uint8 = 0x2C
	KeyMinus      uint8 = 0x2D
	KeyEqual      uint8 = 0x2E
	KeyLeftBrace  uint8 = 0x2F
	KeyRightBrace uint8 = 0x30
	KeyBackslash  uint8 = 0x31
	KeySemicolon  uint8 = 0x33
	KeyQuote      uint8 = 0x34
	KeyBacktick   uint8 = 0x35
	KeyComma      uint8 = 0x36
	KeyPeriod     uint8 = 0x37
	KeySlash      uint8 = 0x38
	KeyCapsLock   uint8 = 0x39
	KeyF1         uint8 = 0x3A
	KeyF12        uint8 = 0x45
	KeyPrintScr   uint8 = 0x46
	KeyScrollLock uint8 = 0x47
	KeyPause      uint8 = 0x48
	KeyInsert     uint8 = 0x49
	KeyHome       uint8 = 0x4A
	KeyPageUp     uint8 = 0x4B
	KeyDelete     uint8 = 0x4C
	KeyEnd        uint8 = 0x4D
	KeyPageDown   uint8 = 0x4E
	KeyRight      uint8 = 0x4F
	KeyLeft       uint8 = 0x50
	KeyDown       uint8 = 0x51
	KeyUp         uint8 = 0x52
	KeyNumLock    uint8 = 0x53
	KeyApp        uint8 = 0x65

	KeyLeftCtrl   uint8 = 0xE0
	KeyLeftShift  uint8 = 0xE1
	KeyLeftAlt    uint8 = 0xE2
	KeyLeftGUI    uint8 = 0xE3
	KeyRightCtrl  uint8 = 0xE4
	KeyRightShift uint8 = 0xE5
	KeyRightAlt   uint8 = 0xE6
	KeyRightGUI   uint8 = 0xE7
)

// Keyboard LED output bits.
const (
	LEDNumLock    uint8 = 1 << 0
	LEDCapsLock   uint8 = 1 << 1
	LEDScrollLock uint8 = 1 << 2
	LEDCompose    uint8 = 1 << 3
	LEDKana       uint8 = 1 << 4
)

var keyNames = map[string]uint8{
	"ENTER": KeyEnter, "RETURN": KeyEnter,
	"ESC": KeyEsc, "ESCAPE": KeyEsc,
	"BACKSPACE": KeyBackspace,
	"TAB":       KeyTab,
	"SPACE":     KeySpace,
	"-":         KeyMinus, "MINUS": KeyMinus,
	"=": KeyEqual, "EQUAL": KeyEqual,
	"[": KeyLeftBrace, "LBRACE": KeyLeftBrace,
	"]": KeyRightBrace, "RBRACE": KeyRightBrace,
	"\\": KeyBackslash, "BACKSLASH": KeyBackslash,
	";": KeySemicolon, "SEMICOLON": KeySemicolon,
	"'": KeyQuote, "QUOTE": KeyQuote,
	"`": KeyBacktick, "BACKTICK": KeyBacktick,
	",": KeyComma, "COMMA": KeyComma,
	".": KeyPeriod, "PERIOD": KeyPeriod,
	"/": KeySlash, "SLASH": KeySlash,
	"CAPSLOCK":    KeyCapsLock,
	"PRINTSCREEN": KeyPrintScr,
	"SCROLLLOCK":  KeyScrollLock,
	"PAUSE":       KeyPause,
	"INSERT":      KeyInsert,
	"HOME":        KeyHome,
	"PAGEUP":      KeyPageUp,
	"DELETE":      KeyDelete,
	"END":         KeyEnd,
	"PAGEDOWN":    KeyPageDown,
	"RIGHT":       KeyRight,
	"LEFT":        KeyLeft,
	"DOWN":        KeyDown,
	"UP":          KeyUp,
	"NUMLOCK":     KeyNumLock,
	"APP":         KeyApp, "MENU": KeyApp,
	"CTRL": KeyLeftCtrl, "LCTRL": KeyLeftCtrl,
	"SHIFT": KeyLeftShift, "LSHIFT": KeyLeftShift,
	"ALT": KeyLeftAlt, "LALT": KeyLeftAlt,
	"GUI": KeyLeftGUI, "LGUI": KeyLeftGUI,
	"RCTRL":  KeyRightCtrl,
	"RSHIFT": KeyRightShift,
	"RALT":   KeyRightAlt,
	"RGUI":   KeyRightGUI,
}

// KeyboardUsage resolves a key name ("A", "7", "F5", "Enter", "LShift") to
// its keyboard page usage.
func KeyboardUsage(name string) (uint8, bool) {
	n := strings.ToUpper(name)
	if len(n) == 1 {
		c := n[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return KeyA + (c - 'A'), true
		case c >= '1' && c <= '9':
			return Key1 + (c - '1'), true
		case c == '0':
			return Key0, true
		}
	}
	if len(n) >= 2 && n[0] == 'F' {
		f := 0
		for _, c := range n[1:] {
			if c < '0' || c > '9' {
				f = -1
				break
			}
			f = f*10 + int(c-'0')
		}
		if f >= 1 && f <= 12 {
			return KeyF1 + uint8(f-1), true
		}
	}
	u, ok := keyNames[n]
	return u, ok
}

// IsModifier reports whether usage is one of the eight modifier keys.
func IsModifier(usage uint8) bool { return usage >= KeyLeftCtrl && usage <= KeyRightGUI }

// KeyboardReport returns the NKRO keyboard report descriptor: one modifier
// byte, one reserved byte, then a 256-bit key bitmap, plus a 5-bit LED
// output report.
func KeyboardReport() Report {
	return Report{Items: []Item{
		UsagePage{Page: UsagePageGenericDesktop},
		Usage{Usage: UsageKeyboard},
		Collection{Kind: CollectionApplication, Items: []Item{
			UsagePage{Page: UsagePageKeyboard},
			UsageMinimum{Min: uint16(KeyLeftCtrl)},
			UsageMaximum{Max: uint16(KeyRightGUI)},
			LogicalMinimum{Min: 0},
			LogicalMaximum{Max: 1},
			ReportSize{Bits: 1},
			ReportCount{Count: 8},
			Input{Flags: MainData | MainVar | MainAbs},

			ReportSize{Bits: 8},
			ReportCount{Count: 1},
			Input{Flags: MainConst},

			UsagePage{Page: UsagePageLEDs},
			UsageMinimum{Min: 1},
			UsageMaximum{Max: 5},
			ReportSize{Bits: 1},
			ReportCount{Count: 5},
			Output{Flags: MainData | MainVar | MainAbs},
			ReportSize{Bits: 3},
			ReportCount{Count: 1},
			Output{Flags: MainConst},

			UsagePage{Page: UsagePageKeyboard},
			UsageMinimum{Min: 0},
			UsageMaximum{Max: 0xFF},
			LogicalMinimum{Min: 0},
			LogicalMaximum{Max: 1},
			ReportSize{Bits: 1},
			ReportCount{Count: 256},
			Input{Flags: MainData | MainVar | MainAbs},
		}},
	}}
}

// ConsumerReport returns a single-usage consumer control report descriptor.
func ConsumerReport() Report {
	return Report{Items: []Item{
		UsagePage{Page: UsagePageConsumer},
		Usage{Usage: UsageConsumerControl},
		Collection{Kind: CollectionApplication, Items: []Item{
			LogicalMinimum{Min: 0},
			LogicalMaximum{Max: 0x3FF},
			UsageMinimum{Min: 0},
			UsageMaximum{Max: 0x3FF},
			ReportSize{Bits: 16},
			ReportCount{Count: 1},
			Input{Flags: MainData | MainArray | MainAbs},
		}},
	}}
}

// SystemReport returns a single-usage system control report descriptor.
func SystemReport() Report {
	return Report{Items: []Item{
		UsagePage{Page: UsagePageGenericDesktop},
		Usage{Usage: UsageSystemControl},
		Collection{Kind: CollectionApplication, Items: []Item{
			LogicalMinimum{Min: 0x01},
			LogicalMaximum{Max: 0xFF},
			UsageMinimum{Min: 0x01},
			UsageMaximum{Max: 0xFF},
			ReportSize{Bits: 8},
			ReportCount{Count: 1},
			Input{Flags: MainData | MainArray | MainAbs},
		}},
	}}
}
