// Package pixel is the capability side of the LED animation pipeline. It
// keeps the stack of running animations, advances them on a periodic tick and
// hands every frame to a Controller that does the actual rendering.
package pixel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/kll"
)

var (
	// ErrUnknown is returned for animation indices the keymap does not define.
	ErrUnknown = errors.New("pixel: unknown animation")
	// ErrFull is returned when the animation stack has no free slot.
	ErrFull = errors.New("pixel: animation stack full")
)

// DefaultStackSize bounds the number of animations running at once.
const DefaultStackSize = 8

// Controller renders animation frames.
type Controller interface {
	Frame(index uint16, frame int)
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(index uint16, frame int)

func (f ControllerFunc) Frame(index uint16, frame int) { f(index, frame) }

// Instance is a running animation.
type Instance struct {
	Index uint16
	Frame int
}

// Stack holds the running animations.
type Stack struct {
	mu     sync.Mutex
	defs   []kll.Animation
	active []Instance
	size   int
	paused bool
	step   int
	ctrl   Controller
	events []kll.TriggerEvent
	logger *slog.Logger
}

// New returns an empty stack for the animations defs, rendering through
// ctrl. A non-positive size selects DefaultStackSize.
func New(defs []kll.Animation, ctrl Controller, size int, logger *slog.Logger) *Stack {
	if size <= 0 {
		size = DefaultStackSize
	}
	return &Stack{
		defs:   defs,
		size:   size,
		ctrl:   ctrl,
		logger: log.Component(logger, "pixel"),
	}
}

// Animation starts animation index from its first frame. Starting an
// animation that is already running restarts it.
func (s *Stack) Animation(index uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(index) >= len(s.defs) {
		return fmt.Errorf("%w: %d", ErrUnknown, index)
	}
	for i := range s.active {
		if s.active[i].Index == index {
			s.active[i].Frame = 0
			return nil
		}
	}
	if len(s.active) >= s.size {
		return ErrFull
	}
	s.active = append(s.active, Instance{Index: index})
	s.queue(index, kll.StateActivate)
	s.logger.Debug("animation started", "index", index, "name", s.defs[index].Name)
	return nil
}

// Control applies an animation control mode to the whole stack.
func (s *Stack) Control(mode kll.AnimationMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch mode {
	case kll.AnimationPauseResume:
		s.paused = !s.paused
	case kll.AnimationForward:
		if s.paused {
			s.step++
		}
	case kll.AnimationBackward:
		for i := range s.active {
			if s.active[i].Frame > 0 {
				s.active[i].Frame--
			}
		}
		s.render()
	case kll.AnimationStop:
		s.clear()
		s.paused = true
	case kll.AnimationReset:
		for i := range s.active {
			s.active[i].Frame = 0
		}
		s.paused = false
		s.render()
	case kll.AnimationPause:
		s.paused = true
	case kll.AnimationResume:
		s.paused = false
	case kll.AnimationClear:
		s.clear()
	}
	s.logger.Debug("animation control", "mode", mode, "paused", s.paused)
}

// Tick advances every running animation by one frame. Finished animations
// that do not loop leave the stack. While paused, only frames requested with
// AnimationForward are advanced.
func (s *Stack) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		if s.step == 0 {
			return
		}
		s.step--
	}
	n := 0
	for _, a := range s.active {
		def := s.defs[a.Index]
		a.Frame++
		if a.Frame >= def.Frames {
			if !def.Loop {
				s.queue(a.Index, kll.StateDeactivate)
				continue
			}
			a.Frame = 0
		}
		s.active[n] = a
		n++
	}
	s.active = s.active[:n]
	s.render()
}

// Run ticks the stack every period until stop is closed. Each tick holds
// guard, the lock delayed capabilities run under.
func (s *Stack) Run(period time.Duration, guard sync.Locker, stop <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			guard.Lock()
			s.Tick()
			guard.Unlock()
		}
	}
}

// Active returns a copy of the running animations.
func (s *Stack) Active() []Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Instance, len(s.active))
	copy(out, s.active)
	return out
}

// Paused reports whether the stack is paused.
func (s *Stack) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// DrainEvents returns the animation trigger events queued since the last
// call.
func (s *Stack) DrainEvents() []kll.TriggerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *Stack) clear() {
	for _, a := range s.active {
		s.queue(a.Index, kll.StateDeactivate)
	}
	s.active = s.active[:0]
}

func (s *Stack) render() {
	if s.ctrl == nil {
		return
	}
	for _, a := range s.active {
		s.ctrl.Frame(a.Index, a.Frame)
	}
}

// queue records an animation trigger event. Only the first 256 animations
// are addressable by triggers.
func (s *Stack) queue(index uint16, state kll.ScheduleState) {
	if index > 0xFF {
		return
	}
	s.events = append(s.events, kll.TriggerEvent{Type: kll.TriggerAnimation1, State: state, Index: uint8(index)})
}
