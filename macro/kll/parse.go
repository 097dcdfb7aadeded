package kll

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kiibohd/controller/usb/hid"
)

// ErrSyntax is returned for malformed trigger or result expressions.
var ErrSyntax = errors.New("kll: syntax error")

// ParseTrigger parses a trigger expression into its combos.
//
// Combos are separated by ',' and combo elements by '+':
//
//	S0x05                 switch 5, press
//	S5 + S6, S7           5 and 6 together, then 7
//	S5(R)                 on release of 5
//	S5(P,H:500ms)         press then hold for at least 500ms
//	Layer1(A|lock)        layer 1 activated by a lock
//	A3(0x40)              analog 3 at exactly 0x40
func ParseTrigger(expr string) ([]Combo, error) {
	seq, err := splitTop(expr, ',')
	if err != nil {
		return nil, err
	}
	combos := make([]Combo, 0, len(seq))
	for i, c := range seq {
		elems, err := splitTop(c, '+')
		if err != nil {
			return nil, err
		}
		combo := make(Combo, 0, len(elems))
		for _, el := range elems {
			g, err := parseGuide(el)
			if err != nil {
				return nil, fmt.Errorf("combo %d: %w", i, err)
			}
			combo = append(combo, g)
		}
		combos = append(combos, combo)
	}
	return combos, nil
}

// ParseResult parses a result expression into its combos.
//
//	U"A"                       keyboard usage by name
//	U0x04 + U"LShift", U"B"    two combos
//	CONS0xE2 / SYS0x81         consumer / system control
//	layerShift(1) layerLatch(1) layerLock(1) layerState(1,0x04)
//	layerRotate(next) animation(3) animationControl(pause)
//	flashMode() noOp()
func ParseResult(expr string) ([]ResultCombo, error) {
	seq, err := splitTop(expr, ',')
	if err != nil {
		return nil, err
	}
	combos := make([]ResultCombo, 0, len(seq))
	for i, c := range seq {
		elems, err := splitTop(c, '+')
		if err != nil {
			return nil, err
		}
		combo := make(ResultCombo, 0, len(elems))
		for _, el := range elems {
			cp, err := parseCapability(el)
			if err != nil {
				return nil, fmt.Errorf("combo %d: %w", i, err)
			}
			combo = append(combo, cp)
		}
		combos = append(combos, combo)
	}
	return combos, nil
}

// splitTop splits s on sep, ignoring separators inside parentheses or quotes.
func splitTop(s string, sep byte) ([]string, error) {
	var (
		out   []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quote = !quote
		case quote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' in %q", ErrSyntax, s)
			}
		case c == sep && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote || depth != 0 {
		return nil, fmt.Errorf("%w: unterminated group in %q", ErrSyntax, s)
	}
	out = append(out, strings.TrimSpace(s[start:]))
	for _, part := range out {
		if part == "" {
			return nil, fmt.Errorf("%w: empty element in %q", ErrSyntax, s)
		}
	}
	return out, nil
}

// splitCall splits "name(args)" into name and args. A bare token has no args.
func splitCall(s string) (name, args string, call bool, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, "", false, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", "", false, fmt.Errorf("%w: expected ')' at end of %q", ErrSyntax, s)
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(s[open+1 : len(s)-1]), true, nil
}

var triggerPrefixes = []struct {
	prefix string
	typ    TriggerType
}{
	// Longest prefixes first.
	{"Layer", TriggerLayer1},
	{"Anim", TriggerAnimation1},
	{"LED", TriggerLED1},
	{"Rot", TriggerRotation1},
	{"S", TriggerSwitch1},
	{"A", TriggerAnalog1},
}

func parseGuide(s string) (TriggerGuide, error) {
	head, args, call, err := splitCall(s)
	if err != nil {
		return TriggerGuide{}, err
	}
	var g TriggerGuide
	matched := false
	for _, p := range triggerPrefixes {
		if !strings.HasPrefix(head, p.prefix) {
			continue
		}
		rest := head[len(p.prefix):]
		// Banks other than 1 are written as S2:0x10.
		bank := 0
		if i := strings.IndexByte(rest, ':'); i >= 0 {
			b, err := strconv.Atoi(rest[:i])
			if err != nil || b < 1 || b > 4 {
				return g, fmt.Errorf("%w: bad bank in %q", ErrSyntax, s)
			}
			if b > 1 && (p.typ == TriggerLED1 || p.typ == TriggerRotation1) {
				return g, fmt.Errorf("%w: %s has a single bank", ErrSyntax, p.prefix)
			}
			bank = b - 1
			rest = rest[i+1:]
		}
		n, err := strconv.ParseUint(rest, 0, 8)
		if err != nil {
			continue
		}
		g.Type = p.typ + TriggerType(bank)
		g.ScanCode = uint8(n)
		matched = true
		break
	}
	if !matched {
		return g, fmt.Errorf("%w: unknown trigger %q", ErrSyntax, s)
	}

	g.State = StatePress
	if !call {
		return g, nil
	}
	entries, err := splitTop(args, ',')
	if err != nil {
		return g, err
	}
	sched := make(Schedule, 0, len(entries))
	timed := false
	for _, e := range entries {
		se, err := parseScheduleEntry(e, g.Type)
		if err != nil {
			return g, fmt.Errorf("%q: %w", s, err)
		}
		if se.Min > 0 {
			timed = true
		}
		sched = append(sched, se)
	}
	g.State = sched[0].State
	if len(sched) > 1 || timed {
		g.Schedule = sched
	}
	return g, nil
}

var stateNames = map[string]ScheduleState{
	"O": StateOff, "OFF": StateOff,
	"P": StatePress, "A": StateActivate,
	"H": StateHold, "ON": StateOn,
	"R": StateRelease, "D": StateDeactivate,
	"UP": StateUniquePress,
	"UR": StateUniqueRelease,
}

var layerBitNames = map[string]ScheduleState{
	"shift": LayerStateShift,
	"latch": LayerStateLatch,
	"lock":  LayerStateLock,
}

func parseScheduleEntry(s string, typ TriggerType) (ScheduleEntry, error) {
	var se ScheduleEntry
	if i := strings.IndexByte(s, ':'); i >= 0 {
		d, err := time.ParseDuration(strings.TrimSpace(s[i+1:]))
		if err != nil || d < 0 {
			return se, fmt.Errorf("%w: bad duration %q", ErrSyntax, s[i+1:])
		}
		se.Min = d
		s = strings.TrimSpace(s[:i])
	}
	parts := strings.Split(s, "|")
	base := strings.TrimSpace(parts[0])
	if st, ok := stateNames[strings.ToUpper(base)]; ok {
		se.State = st
	} else if n, err := strconv.ParseUint(base, 0, 8); err == nil {
		se.State = ScheduleState(n)
	} else {
		return se, fmt.Errorf("%w: unknown state %q", ErrSyntax, base)
	}
	for _, p := range parts[1:] {
		bit, ok := layerBitNames[strings.ToLower(strings.TrimSpace(p))]
		if !ok || !typ.IsLayer() {
			return se, fmt.Errorf("%w: unexpected state modifier %q", ErrSyntax, p)
		}
		se.State |= bit
	}
	return se, nil
}

var animationModes = map[string]AnimationMode{
	"pauseresume": AnimationPauseResume,
	"forward":     AnimationForward,
	"backward":    AnimationBackward,
	"stop":        AnimationStop,
	"reset":       AnimationReset,
	"pause":       AnimationPause,
	"resume":      AnimationResume,
	"clear":       AnimationClear,
}

func parseCapability(s string) (Capability, error) {
	switch {
	case strings.HasPrefix(s, "U"):
		code, err := parseUsage(s[1:])
		if err != nil {
			return nil, err
		}
		return USBKey{Code: code}, nil
	case strings.HasPrefix(s, "CONS"):
		n, err := strconv.ParseUint(s[4:], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: bad consumer code %q", ErrSyntax, s)
		}
		return ConsumerControl{Code: uint16(n)}, nil
	case strings.HasPrefix(s, "SYS"):
		n, err := strconv.ParseUint(s[3:], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad system code %q", ErrSyntax, s)
		}
		return SystemControl{Code: uint8(n)}, nil
	}

	name, args, call, err := splitCall(s)
	if err != nil {
		return nil, err
	}
	if !call {
		return nil, fmt.Errorf("%w: unknown capability %q", ErrSyntax, s)
	}
	var argv []string
	if args != "" {
		if argv, err = splitTop(args, ','); err != nil {
			return nil, err
		}
	}
	want := func(n int) error {
		if len(argv) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrSyntax, name, n, len(argv))
		}
		return nil
	}
	layerArg := func(i int) (LayerIndex, error) {
		n, err := strconv.ParseUint(argv[i], 0, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: bad layer %q", ErrSyntax, argv[i])
		}
		return LayerIndex(n), nil
	}

	switch name {
	case "layerShift", "layerLatch", "layerLock":
		if err := want(1); err != nil {
			return nil, err
		}
		l, err := layerArg(0)
		if err != nil {
			return nil, err
		}
		switch name {
		case "layerShift":
			return LayerShiftCap{Layer: l}, nil
		case "layerLatch":
			return LayerLatchCap{Layer: l}, nil
		}
		return LayerLockCap{Layer: l}, nil
	case "layerState":
		if err := want(2); err != nil {
			return nil, err
		}
		l, err := layerArg(0)
		if err != nil {
			return nil, err
		}
		m, err := strconv.ParseUint(argv[1], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad layer mode %q", ErrSyntax, argv[1])
		}
		return LayerStateCap{Layer: l, Mode: LayerMode(m)}, nil
	case "layerRotate":
		if err := want(1); err != nil {
			return nil, err
		}
		switch argv[0] {
		case "next", "0":
			return LayerRotateCap{Next: true}, nil
		case "prev", "1":
			return LayerRotateCap{Next: false}, nil
		}
		return nil, fmt.Errorf("%w: bad rotate direction %q", ErrSyntax, argv[0])
	case "animation":
		if err := want(1); err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(argv[0], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: bad animation %q", ErrSyntax, argv[0])
		}
		return AnimationCap{Index: uint16(n)}, nil
	case "animationControl":
		if err := want(1); err != nil {
			return nil, err
		}
		if m, ok := animationModes[strings.ToLower(argv[0])]; ok {
			return AnimationControlCap{Mode: m}, nil
		}
		n, err := strconv.ParseUint(argv[0], 0, 8)
		if err != nil || n > uint64(AnimationClear) {
			return nil, fmt.Errorf("%w: bad animation mode %q", ErrSyntax, argv[0])
		}
		return AnimationControlCap{Mode: AnimationMode(n)}, nil
	case "flashMode":
		if err := want(0); err != nil {
			return nil, err
		}
		return FlashModeCap{}, nil
	case "noOp":
		if err := want(0); err != nil {
			return nil, err
		}
		return NoOpCap{}, nil
	}
	return nil, fmt.Errorf("%w: unknown capability %q", ErrSyntax, name)
}

func parseUsage(s string) (uint8, error) {
	if strings.HasPrefix(s, "\"") {
		if len(s) < 3 || !strings.HasSuffix(s, "\"") {
			return 0, fmt.Errorf("%w: bad usage name %q", ErrSyntax, s)
		}
		code, ok := hid.KeyboardUsage(s[1 : len(s)-1])
		if !ok {
			return 0, fmt.Errorf("%w: unknown key %s", ErrSyntax, s)
		}
		return code, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: bad usage %q", ErrSyntax, s)
	}
	return uint8(n), nil
}
