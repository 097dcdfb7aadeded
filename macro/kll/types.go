// Package kll holds the compiled keymap tables consumed by the macro engine:
// trigger macros, result macros, layers and the capability variants results
// are built from.
//
// A compiled Map is immutable once loaded. All runtime state lives in the
// engines (see packages layer, trigger and result).
package kll

import (
	"fmt"
	"time"
)

// TriggerType identifies the source bank of a trigger event.
type TriggerType uint8

const (
	TriggerSwitch1    TriggerType = 0x00
	TriggerSwitch2    TriggerType = 0x01
	TriggerSwitch3    TriggerType = 0x02
	TriggerSwitch4    TriggerType = 0x03
	TriggerLED1       TriggerType = 0x04
	TriggerAnalog1    TriggerType = 0x05
	TriggerAnalog2    TriggerType = 0x06
	TriggerAnalog3    TriggerType = 0x07
	TriggerAnalog4    TriggerType = 0x08
	TriggerLayer1     TriggerType = 0x09
	TriggerLayer2     TriggerType = 0x0A
	TriggerLayer3     TriggerType = 0x0B
	TriggerLayer4     TriggerType = 0x0C
	TriggerAnimation1 TriggerType = 0x0D
	TriggerAnimation2 TriggerType = 0x0E
	TriggerAnimation3 TriggerType = 0x0F
	TriggerAnimation4 TriggerType = 0x10
	TriggerSleep1     TriggerType = 0x11
	TriggerResume1    TriggerType = 0x12
	TriggerInactive1  TriggerType = 0x13
	TriggerActive1    TriggerType = 0x14
	TriggerRotation1  TriggerType = 0x15
	TriggerDebug      TriggerType = 0xFF
)

// IsSwitch reports whether t is one of the four switch banks.
func (t TriggerType) IsSwitch() bool { return t <= TriggerSwitch4 }

// IsLayer reports whether t is one of the four layer banks.
func (t TriggerType) IsLayer() bool { return t >= TriggerLayer1 && t <= TriggerLayer4 }

// IsAnalog reports whether t is one of the four analog banks.
func (t TriggerType) IsAnalog() bool { return t >= TriggerAnalog1 && t <= TriggerAnalog4 }

// IsAnimation reports whether t is one of the four animation banks.
func (t TriggerType) IsAnimation() bool { return t >= TriggerAnimation1 && t <= TriggerAnimation4 }

func (t TriggerType) String() string {
	switch {
	case t.IsSwitch():
		return fmt.Sprintf("Switch%d", t-TriggerSwitch1+1)
	case t == TriggerLED1:
		return "LED1"
	case t.IsAnalog():
		return fmt.Sprintf("Analog%d", t-TriggerAnalog1+1)
	case t.IsLayer():
		return fmt.Sprintf("Layer%d", t-TriggerLayer1+1)
	case t.IsAnimation():
		return fmt.Sprintf("Animation%d", t-TriggerAnimation1+1)
	case t == TriggerSleep1:
		return "Sleep1"
	case t == TriggerResume1:
		return "Resume1"
	case t == TriggerInactive1:
		return "Inactive1"
	case t == TriggerActive1:
		return "Active1"
	case t == TriggerRotation1:
		return "Rotation1"
	case t == TriggerDebug:
		return "Debug"
	}
	return fmt.Sprintf("TriggerType(0x%02x)", uint8(t))
}

// ScheduleState is the raw state code carried by events and guides.
//
// The low nibble is the schedule state proper. On layer events bits 0x70
// carry the layer state that caused the event (see LayerStateBits).
type ScheduleState uint8

// Switch states.
const (
	StateOff           ScheduleState = 0x00
	StatePress         ScheduleState = 0x01
	StateHold          ScheduleState = 0x02
	StateRelease       ScheduleState = 0x03
	StateUniquePress   ScheduleState = 0x04
	StateUniqueRelease ScheduleState = 0x05
)

// Layer and animation states share the switch encoding.
const (
	StateActivate   ScheduleState = StatePress
	StateOn         ScheduleState = StateHold
	StateDeactivate ScheduleState = StateRelease
)

// Layer state bits folded into ScheduleState on layer events.
const (
	LayerStateBits  ScheduleState = 0x70
	LayerStateShift ScheduleState = 0x10
	LayerStateLatch ScheduleState = 0x20
	LayerStateLock  ScheduleState = 0x40
)

// Base strips the layer state bits.
func (s ScheduleState) Base() ScheduleState { return s & 0x0F }

// IsInitial reports whether s begins an activation (press or unique press).
func (s ScheduleState) IsInitial() bool {
	b := s.Base()
	return b == StatePress || b == StateUniquePress
}

// IsRelease reports whether s ends an activation.
func (s ScheduleState) IsRelease() bool {
	b := s.Base()
	return b == StateRelease || b == StateUniqueRelease
}

func (s ScheduleState) String() string {
	var base string
	switch s.Base() {
	case StateOff:
		base = "O"
	case StatePress:
		base = "P"
	case StateHold:
		base = "H"
	case StateRelease:
		base = "R"
	case StateUniquePress:
		base = "UP"
	case StateUniqueRelease:
		base = "UR"
	default:
		base = fmt.Sprintf("0x%02x", uint8(s.Base()))
	}
	if bits := s & LayerStateBits; bits != 0 {
		return fmt.Sprintf("%s|0x%02x", base, uint8(bits))
	}
	return base
}

// CapabilityState is the state a capability is invoked with.
type CapabilityState uint8

const (
	CapabilityNone    CapabilityState = 0x00
	CapabilityInitial CapabilityState = 0x01
	CapabilityAny     CapabilityState = 0x02
	CapabilityLast    CapabilityState = 0x03
	// CapabilityDebug asks a capability to report its own name.
	CapabilityDebug CapabilityState = 0xFF
)

func (s CapabilityState) String() string {
	switch s {
	case CapabilityNone:
		return "none"
	case CapabilityInitial:
		return "initial"
	case CapabilityAny:
		return "any"
	case CapabilityLast:
		return "last"
	case CapabilityDebug:
		return "debug"
	}
	return fmt.Sprintf("CapabilityState(0x%02x)", uint8(s))
}

// ScheduleEntry is one stage of a state-scheduled trigger: the element must
// reach State and stay there for at least Min.
type ScheduleEntry struct {
	State ScheduleState
	Min   time.Duration
}

// Schedule is an ordered list of stages consumed strictly in order.
type Schedule []ScheduleEntry

// TriggerEvent is one physical (or synthesized) input event for a scan cycle.
type TriggerEvent struct {
	Type  TriggerType
	State ScheduleState
	Index uint8
}

// Key returns the lookup key of the event.
func (e TriggerEvent) Key() TriggerKey { return TriggerKey{Type: e.Type, Index: e.Index} }

func (e TriggerEvent) String() string {
	return fmt.Sprintf("%s:0x%02x(%s)", e.Type, e.Index, e.State)
}

// TriggerKey addresses a trigger list inside a layer.
type TriggerKey struct {
	Type  TriggerType
	Index uint8
}

// TriggerGuide is one element of a trigger combo.
type TriggerGuide struct {
	Type     TriggerType
	State    ScheduleState
	ScanCode uint8
	// Schedule makes the guide state-scheduled when non-empty.
	Schedule Schedule
}

// Key returns the lookup key of the guide.
func (g TriggerGuide) Key() TriggerKey { return TriggerKey{Type: g.Type, Index: g.ScanCode} }

// Scheduled reports whether the guide is state-scheduled.
func (g TriggerGuide) Scheduled() bool { return len(g.Schedule) > 0 }

// Matches reports whether ev addresses the same input as g.
func (g TriggerGuide) Matches(ev TriggerEvent) bool {
	return g.Type == ev.Type && g.ScanCode == ev.Index
}

// Combo is a set of guides that must be satisfied together.
type Combo []TriggerGuide

// Scheduled reports whether any element of the combo is state-scheduled.
func (c Combo) Scheduled() bool {
	for _, g := range c {
		if g.Scheduled() {
			return true
		}
	}
	return false
}

// TriggerIndex indexes Map.Triggers.
type TriggerIndex uint16

// ResultIndex indexes Map.Results.
type ResultIndex uint16

// LayerIndex indexes Map.Layers. Layer 0 is the default layer.
type LayerIndex uint8

// TriggerMacro maps a sequence of combos to a result macro.
type TriggerMacro struct {
	Name   string
	Guide  []Combo
	Result ResultIndex
}

// Long reports whether the macro is a multi-combo sequence.
func (m TriggerMacro) Long() bool { return len(m.Guide) > 1 }

// ResultCombo is one step of a result macro.
type ResultCombo []Capability

// ResultMacro is a sequence of capability combos.
type ResultMacro struct {
	Name  string
	Guide []ResultCombo
	// Scheduled results fire once after their trigger fully passes and releases.
	Scheduled bool
}

// Long reports whether the macro is a multi-combo sequence.
func (m ResultMacro) Long() bool { return len(m.Guide) > 1 }

// Layer is a static layer definition.
type Layer struct {
	Name string
	// First and Last bound the switch scan codes mapped by this layer.
	First, Last uint8
	Triggers    map[TriggerKey][]TriggerIndex
}

// TriggerList returns the trigger macros mapped at k, or nil.
func (l *Layer) TriggerList(k TriggerKey) []TriggerIndex {
	if k.Type.IsSwitch() && (k.Index < l.First || k.Index > l.Last) {
		return nil
	}
	return l.Triggers[k]
}

// Animation is a pixel animation definition.
type Animation struct {
	Name   string
	Frames int
	Loop   bool
}

// Map is a compiled keymap.
type Map struct {
	Name       string
	Triggers   []TriggerMacro
	Results    []ResultMacro
	Layers     []Layer
	Animations []Animation
}
