package kll

import "fmt"

// Capability is one result action. The concrete variants below carry their
// arguments as typed fields; dispatch happens in package result.
type Capability interface {
	// Name is the capability's table name, as reported in debug mode.
	Name() string
	// Safe capabilities run inline during result processing. The rest are
	// deferred until periodic work is suspended.
	Safe() bool
	String() string

	capability()
}

// LayerMode is a bitmask of layer activation modes.
type LayerMode uint8

const (
	LayerOff   LayerMode = 0x00
	LayerShift LayerMode = 0x01
	LayerLatch LayerMode = 0x02
	LayerLock  LayerMode = 0x04
)

func (m LayerMode) String() string {
	if m == LayerOff {
		return "off"
	}
	s := ""
	add := func(v string) {
		if s != "" {
			s += "|"
		}
		s += v
	}
	if m&LayerShift != 0 {
		add("shift")
	}
	if m&LayerLatch != 0 {
		add("latch")
	}
	if m&LayerLock != 0 {
		add("lock")
	}
	if rest := m &^ (LayerShift | LayerLatch | LayerLock); rest != 0 {
		add(fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return s
}

// AnimationMode selects an animation control operation.
type AnimationMode uint8

const (
	AnimationPauseResume AnimationMode = iota
	AnimationForward
	AnimationBackward
	AnimationStop
	AnimationReset
	AnimationPause
	AnimationResume
	AnimationClear
)

func (m AnimationMode) String() string {
	switch m {
	case AnimationPauseResume:
		return "pauseResume"
	case AnimationForward:
		return "forward"
	case AnimationBackward:
		return "backward"
	case AnimationStop:
		return "stop"
	case AnimationReset:
		return "reset"
	case AnimationPause:
		return "pause"
	case AnimationResume:
		return "resume"
	case AnimationClear:
		return "clear"
	}
	return fmt.Sprintf("AnimationMode(%d)", uint8(m))
}

// USBKey presses a keyboard usage while its trigger is held.
type USBKey struct{ Code uint8 }

func (USBKey) Name() string     { return "usbKeyOut" }
func (USBKey) Safe() bool       { return true }
func (c USBKey) String() string { return fmt.Sprintf("U0x%02X", c.Code) }
func (USBKey) capability()      {}

// ConsumerControl presses a consumer page usage.
type ConsumerControl struct{ Code uint16 }

func (ConsumerControl) Name() string     { return "consCtrlOut" }
func (ConsumerControl) Safe() bool       { return true }
func (c ConsumerControl) String() string { return fmt.Sprintf("CONS0x%03X", c.Code) }
func (ConsumerControl) capability()      {}

// SystemControl presses a system control usage.
type SystemControl struct{ Code uint8 }

func (SystemControl) Name() string     { return "sysCtrlOut" }
func (SystemControl) Safe() bool       { return true }
func (c SystemControl) String() string { return fmt.Sprintf("SYS0x%02X", c.Code) }
func (SystemControl) capability()      {}

// LayerShiftCap activates a layer while held.
type LayerShiftCap struct{ Layer LayerIndex }

func (LayerShiftCap) Name() string     { return "layerShift" }
func (LayerShiftCap) Safe() bool       { return true }
func (c LayerShiftCap) String() string { return fmt.Sprintf("layerShift(%d)", c.Layer) }
func (LayerShiftCap) capability()      {}

// LayerLatchCap activates a layer for the next key press.
type LayerLatchCap struct{ Layer LayerIndex }

func (LayerLatchCap) Name() string     { return "layerLatch" }
func (LayerLatchCap) Safe() bool       { return true }
func (c LayerLatchCap) String() string { return fmt.Sprintf("layerLatch(%d)", c.Layer) }
func (LayerLatchCap) capability()      {}

// LayerLockCap toggles a layer on press.
type LayerLockCap struct{ Layer LayerIndex }

func (LayerLockCap) Name() string     { return "layerLock" }
func (LayerLockCap) Safe() bool       { return true }
func (c LayerLockCap) String() string { return fmt.Sprintf("layerLock(%d)", c.Layer) }
func (LayerLockCap) capability()      {}

// LayerStateCap XORs an arbitrary mode mask into a layer on press.
type LayerStateCap struct {
	Layer LayerIndex
	Mode  LayerMode
}

func (LayerStateCap) Name() string { return "layerState" }
func (LayerStateCap) Safe() bool   { return true }
func (c LayerStateCap) String() string {
	return fmt.Sprintf("layerState(%d,0x%02x)", c.Layer, uint8(c.Mode))
}
func (LayerStateCap) capability() {}

// LayerRotateCap locks the next (or previous) layer, unlocking the current one.
type LayerRotateCap struct{ Next bool }

func (LayerRotateCap) Name() string { return "layerRotate" }
func (LayerRotateCap) Safe() bool   { return true }
func (c LayerRotateCap) String() string {
	if c.Next {
		return "layerRotate(next)"
	}
	return "layerRotate(prev)"
}
func (LayerRotateCap) capability() {}

// AnimationCap pushes an animation onto the pixel animation stack.
type AnimationCap struct{ Index uint16 }

func (AnimationCap) Name() string     { return "animation" }
func (AnimationCap) Safe() bool       { return false }
func (c AnimationCap) String() string { return fmt.Sprintf("animation(%d)", c.Index) }
func (AnimationCap) capability()      {}

// AnimationControlCap drives the pixel animation stack.
type AnimationControlCap struct{ Mode AnimationMode }

func (AnimationControlCap) Name() string     { return "animationControl" }
func (AnimationControlCap) Safe() bool       { return false }
func (c AnimationControlCap) String() string { return fmt.Sprintf("animationControl(%s)", c.Mode) }
func (AnimationControlCap) capability()      {}

// FlashModeCap reboots the controller into the bootloader.
type FlashModeCap struct{}

func (FlashModeCap) Name() string   { return "flashMode" }
func (FlashModeCap) Safe() bool     { return false }
func (FlashModeCap) String() string { return "flashMode()" }
func (FlashModeCap) capability()    {}

// NoOpCap does nothing. It masks a key on an upper layer.
type NoOpCap struct{}

func (NoOpCap) Name() string   { return "noOp" }
func (NoOpCap) Safe() bool     { return true }
func (NoOpCap) String() string { return "noOp()" }
func (NoOpCap) capability()    {}

// Capabilities lists one zero value of every variant, in table order.
func Capabilities() []Capability {
	return []Capability{
		NoOpCap{},
		USBKey{},
		ConsumerControl{},
		SystemControl{},
		LayerShiftCap{},
		LayerLatchCap{},
		LayerLockCap{},
		LayerStateCap{},
		LayerRotateCap{},
		AnimationCap{},
		AnimationControlCap{},
		FlashModeCap{},
	}
}
