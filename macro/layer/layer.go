// Package layer resolves trigger events to trigger macro lists through the
// stack of active layers.
//
// Each layer carries a mode bitmask (shift, latch, lock). A layer sits on the
// index stack exactly while its mode is non-zero; the default layer 0 is
// never stacked and is always consulted last.
package layer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/kll"
)

// ErrNotFound is returned when no layer maps the looked up event.
var ErrNotFound = errors.New("layer: no trigger macro mapped")

// ErrRange is returned for layer indices outside the keymap.
var ErrRange = errors.New("layer: index out of range")

// NotifyFunc is called after every layer mode change, e.g. to forward state
// over an interconnect or to refresh a display.
type NotifyFunc func(layer kll.LayerIndex, mode kll.LayerMode)

// Stack tracks layer modes, the activation order and the per-key layer
// cache used to keep press and release on the same layer.
type Stack struct {
	m      *kll.Map
	modes  []kll.LayerMode
	stack  []kll.LayerIndex
	cache  map[kll.TriggerKey]kll.LayerIndex
	events []kll.TriggerEvent
	notify NotifyFunc
	logger *slog.Logger
}

// New returns a Stack for keymap m with every layer off.
func New(m *kll.Map, logger *slog.Logger) *Stack {
	return &Stack{
		m:      m,
		modes:  make([]kll.LayerMode, len(m.Layers)),
		stack:  make([]kll.LayerIndex, 0, len(m.Layers)),
		cache:  make(map[kll.TriggerKey]kll.LayerIndex),
		logger: log.Component(logger, "layer"),
	}
}

// SetNotify installs the mode change hook.
func (s *Stack) SetNotify(fn NotifyFunc) { s.notify = fn }

// Len returns the number of layers in the keymap.
func (s *Stack) Len() int { return len(s.modes) }

// Name returns the name of layer l.
func (s *Stack) Name(l kll.LayerIndex) string {
	if int(l) >= len(s.m.Layers) {
		return fmt.Sprintf("layer%d", l)
	}
	return s.m.Layers[l].Name
}

// Mode returns the current mode of layer l.
func (s *Stack) Mode(l kll.LayerIndex) kll.LayerMode {
	if int(l) >= len(s.modes) {
		return kll.LayerOff
	}
	return s.modes[l]
}

// Stack returns the active layers, bottom first.
func (s *Stack) Stack() []kll.LayerIndex {
	out := make([]kll.LayerIndex, len(s.stack))
	copy(out, s.stack)
	return out
}

// Reset turns every layer off and forgets the lookup cache.
func (s *Stack) Reset() {
	for i := range s.modes {
		s.modes[i] = kll.LayerOff
	}
	s.stack = s.stack[:0]
	s.events = s.events[:0]
	clear(s.cache)
}

// Usable reports whether a stacked layer in mode m takes part in lookups.
// The shift, latch and lock bits are XORed: two modes held at once cancel out.
func Usable(m kll.LayerMode) bool {
	return (m&kll.LayerShift)^((m&kll.LayerLatch)>>1)^((m&kll.LayerLock)>>2) != 0
}

// StateSet XORs mode into layer l, maintaining the index stack and queueing
// a layer trigger event describing the change. Layer 0 is ignored.
func (s *Stack) StateSet(l kll.LayerIndex, mode kll.LayerMode) error {
	if int(l) >= len(s.modes) {
		return fmt.Errorf("%w: %d", ErrRange, l)
	}
	if l == 0 || mode == kll.LayerOff {
		return nil
	}

	prev := s.modes[l]
	next := prev ^ mode
	s.modes[l] = next

	switch {
	case prev == kll.LayerOff && next != kll.LayerOff:
		s.push(l)
	case prev != kll.LayerOff && next == kll.LayerOff:
		s.remove(l)
	}

	state := kll.StateOn
	switch {
	case prev == kll.LayerOff:
		state = kll.StateActivate
	case next == kll.LayerOff:
		state = kll.StateDeactivate
	}
	state |= kll.ScheduleState(mode<<4) & kll.LayerStateBits
	s.events = append(s.events, kll.TriggerEvent{Type: kll.TriggerLayer1, State: state, Index: uint8(l)})

	s.logger.Debug("layer state", "layer", l, "name", s.Name(l), "from", prev, "to", next, "stack", s.stack)
	if s.notify != nil {
		s.notify(l, next)
	}
	return nil
}

// Rotate locks the next (or previous) layer and unlocks the currently
// locked one, wrapping around through the default layer.
func (s *Stack) Rotate(next bool) error {
	n := len(s.modes)
	if n <= 1 {
		return nil
	}
	cur := kll.LayerIndex(0)
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.modes[s.stack[i]]&kll.LayerLock != 0 {
			cur = s.stack[i]
			break
		}
	}
	var target int
	if next {
		target = (int(cur) + 1) % n
	} else {
		target = (int(cur) - 1 + n) % n
	}
	if cur != 0 {
		if err := s.StateSet(cur, kll.LayerLock); err != nil {
			return err
		}
	}
	if target != 0 {
		return s.StateSet(kll.LayerIndex(target), kll.LayerLock)
	}
	return nil
}

// DrainEvents returns the layer events queued since the last call.
func (s *Stack) DrainEvents() []kll.TriggerEvent {
	if len(s.events) == 0 {
		return nil
	}
	out := s.events
	s.events = nil
	return out
}

// Lookup resolves ev to the trigger macros mapped for it and the layer that
// supplied them. latchExpire consumes latched layers on the way.
//
// Anything but an initial press reuses the layer the key was last pressed
// on, so a press and its release always resolve to the same layer.
func (s *Stack) Lookup(ev kll.TriggerEvent, latchExpire bool) ([]kll.TriggerIndex, kll.LayerIndex, error) {
	key := ev.Key()

	if !ev.State.IsInitial() {
		// Keys never pressed since setup resolve on the default layer.
		l := s.cache[key]
		if latchExpire && s.modes[l]&kll.LayerLatch != 0 {
			_ = s.StateSet(l, kll.LayerLatch)
		}
		if list := s.m.Layers[l].TriggerList(key); len(list) > 0 {
			return list, l, nil
		}
		s.logger.Debug("no trigger mapped on cached layer", "event", ev, "layer", l)
		return nil, l, fmt.Errorf("%w: %s", ErrNotFound, ev)
	}

	// Walk from the most recently activated layer down. StateSet may shrink
	// the stack while we go, so work on a snapshot.
	snapshot := s.Stack()
	for i := len(snapshot) - 1; i >= 0; i-- {
		l := snapshot[i]
		mode := s.modes[l]
		if latchExpire && mode&kll.LayerLatch != 0 {
			_ = s.StateSet(l, kll.LayerLatch)
		}
		if !Usable(mode) {
			continue
		}
		if list := s.m.Layers[l].TriggerList(key); len(list) > 0 {
			s.cache[key] = l
			return list, l, nil
		}
	}

	if list := s.m.Layers[0].TriggerList(key); len(list) > 0 {
		s.cache[key] = 0
		return list, 0, nil
	}

	s.logger.Debug("no trigger mapped", "event", ev)
	return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, ev)
}

func (s *Stack) push(l kll.LayerIndex) {
	for _, x := range s.stack {
		if x == l {
			return
		}
	}
	s.stack = append(s.stack, l)
}

func (s *Stack) remove(l kll.LayerIndex) {
	n := 0
	for _, x := range s.stack {
		if x != l {
			s.stack[n] = x
			n++
		}
	}
	s.stack = s.stack[:n]
}

// Shift toggles the shift bit of layer l.
func (s *Stack) Shift(l kll.LayerIndex) error { return s.StateSet(l, kll.LayerShift) }

// Latch toggles the latch bit of layer l.
func (s *Stack) Latch(l kll.LayerIndex) error { return s.StateSet(l, kll.LayerLatch) }

// Lock toggles the lock bit of layer l.
func (s *Stack) Lock(l kll.LayerIndex) error { return s.StateSet(l, kll.LayerLock) }
