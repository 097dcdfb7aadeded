package result

import (
	"fmt"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/kll"
)

// Output receives HID usage changes.
type Output interface {
	Key(code uint8, pressed bool)
	Consumer(code uint16, pressed bool)
	System(code uint8, pressed bool)
}

// Layers receives layer state changes.
type Layers interface {
	StateSet(l kll.LayerIndex, mode kll.LayerMode) error
	Rotate(next bool) error
}

// Pixels receives animation control.
type Pixels interface {
	Animation(index uint16) error
	Control(mode kll.AnimationMode)
}

// Handlers are the collaborators capabilities act on. Nil members make the
// matching capabilities no-ops.
type Handlers struct {
	Output Output
	Layers Layers
	Pixels Pixels
	// FlashMode is called to jump into the bootloader.
	FlashMode func()
}

// Describe returns the introspection line of capability c.
func Describe(c kll.Capability) string {
	kind := "safe"
	if !c.Safe() {
		kind = "delayed"
	}
	return fmt.Sprintf("%-18s %s", c.Name(), kind)
}

// Invoke runs capability c immediately, bypassing the delayed stack. A
// CapabilityDebug state only reports the capability name.
func (e *Engine) Invoke(c kll.Capability, inv Invocation) {
	if inv.State == kll.CapabilityDebug {
		e.logger.Info(c.Name(), "safe", c.Safe())
		return
	}
	e.logger.Log(nil, log.LevelTrace, "invoke", "capability", c, "state", inv.State, "type", inv.StateType, "trigger", inv.Trigger)

	initial := inv.State == kll.CapabilityInitial
	last := inv.State == kll.CapabilityLast

	switch c := c.(type) {
	case kll.USBKey:
		if e.h.Output != nil && inv.State != kll.CapabilityNone {
			e.h.Output.Key(c.Code, !last)
		}
	case kll.ConsumerControl:
		if e.h.Output != nil && inv.State != kll.CapabilityNone {
			e.h.Output.Consumer(c.Code, !last)
		}
	case kll.SystemControl:
		if e.h.Output != nil && inv.State != kll.CapabilityNone {
			e.h.Output.System(c.Code, !last)
		}
	case kll.LayerShiftCap:
		if initial || last {
			e.layerState(c.Layer, kll.LayerShift)
		}
	case kll.LayerLatchCap:
		if last {
			e.layerState(c.Layer, kll.LayerLatch)
		}
	case kll.LayerLockCap:
		if initial {
			e.layerState(c.Layer, kll.LayerLock)
		}
	case kll.LayerStateCap:
		if initial || last {
			e.layerState(c.Layer, c.Mode)
		}
	case kll.LayerRotateCap:
		if initial && e.h.Layers != nil {
			if err := e.h.Layers.Rotate(c.Next); err != nil {
				e.logger.Warn("layer rotate failed", "error", err)
			}
		}
	case kll.AnimationCap:
		if initial && e.h.Pixels != nil {
			if err := e.h.Pixels.Animation(c.Index); err != nil {
				e.logger.Warn("animation failed", "index", c.Index, "error", err)
			}
		}
	case kll.AnimationControlCap:
		if initial && e.h.Pixels != nil {
			e.h.Pixels.Control(c.Mode)
		}
	case kll.FlashModeCap:
		if initial && e.h.FlashMode != nil {
			e.logger.Info("entering flash mode")
			e.h.FlashMode()
		}
	case kll.NoOpCap:
	default:
		e.logger.Warn("unhandled capability", "capability", c)
	}
}

func (e *Engine) layerState(l kll.LayerIndex, mode kll.LayerMode) {
	if e.h.Layers == nil {
		return
	}
	if err := e.h.Layers.StateSet(l, mode); err != nil {
		e.logger.Warn("layer state change failed", "layer", l, "mode", mode, "error", err)
	}
}
