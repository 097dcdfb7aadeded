// Package macro wires the layer resolver, trigger engine and result engine
// into one scan cycle.
//
// A cycle votes trigger macros against the incoming events, runs the fired
// result macros, drains the delayed capabilities and returns the HID
// reports. Layer and animation state changes caused during a cycle are fed
// back as trigger events at the start of the next one.
package macro

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/kll"
	"github.com/kiibohd/controller/macro/layer"
	"github.com/kiibohd/controller/macro/output"
	"github.com/kiibohd/controller/macro/pixel"
	"github.com/kiibohd/controller/macro/result"
	"github.com/kiibohd/controller/macro/trigger"
)

// Options configures an Engine.
type Options struct {
	Clock func() time.Time
	// DelayedCapacity bounds the delayed capability stack.
	DelayedCapacity int
	// Guard is held while delayed capabilities and pixel ticks run.
	Guard sync.Locker
	// Pixel renders animation frames. Nil disables rendering, animations
	// still run.
	Pixel pixel.Controller
	// AnimationStackSize bounds concurrently running animations.
	AnimationStackSize int
	// FlashMode is invoked by the flashMode capability.
	FlashMode func()
	Logger    *slog.Logger
}

// Engine runs scan cycles for one keymap.
type Engine struct {
	Map      *kll.Map
	Layers   *layer.Stack
	Triggers *trigger.Engine
	Results  *result.Engine
	Output   *output.State
	Pixels   *pixel.Stack

	feedback []kll.TriggerEvent
	cycle    uint64
	logger   *slog.Logger
}

// New builds an engine for keymap m.
func New(m *kll.Map, opts Options) *Engine {
	logger := log.Component(opts.Logger, "macro")
	if opts.Guard == nil {
		opts.Guard = &sync.Mutex{}
	}

	e := &Engine{
		Map:    m,
		Layers: layer.New(m, opts.Logger),
		Output: output.New(opts.Logger),
		Pixels: pixel.New(m.Animations, opts.Pixel, opts.AnimationStackSize, opts.Logger),
		logger: logger,
	}
	e.Results = result.New(m, result.Handlers{
		Output:    e.Output,
		Layers:    e.Layers,
		Pixels:    e.Pixels,
		FlashMode: opts.FlashMode,
	}, result.Options{
		DelayedCapacity: opts.DelayedCapacity,
		Guard:           opts.Guard,
		Logger:          opts.Logger,
	})
	e.Triggers = trigger.New(m, e.Layers, e.Results, trigger.Options{
		Clock:  opts.Clock,
		Logger: opts.Logger,
	})
	return e
}

// Cycle runs one scan cycle over events and returns the HID reports and
// whether they changed.
func (e *Engine) Cycle(events []kll.TriggerEvent) (output.Reports, bool) {
	e.cycle++
	buf := make([]kll.TriggerEvent, 0, len(e.feedback)+len(events))
	buf = append(buf, e.feedback...)
	buf = append(buf, events...)
	e.feedback = e.feedback[:0]

	if len(buf) > 0 {
		e.logger.Log(nil, log.LevelTrace, "cycle", "n", e.cycle, "events", buf)
	}

	e.Triggers.Process(buf)
	e.Results.Process()
	e.Results.ProcessDelayed()

	e.feedback = append(e.feedback, e.Layers.DrainEvents()...)
	e.feedback = append(e.feedback, e.Pixels.DrainEvents()...)

	return e.Output.Flush()
}

// Feedback returns the events queued for the next cycle.
func (e *Engine) Feedback() []kll.TriggerEvent {
	out := make([]kll.TriggerEvent, len(e.feedback))
	copy(out, e.feedback)
	return out
}

// Reset returns every component to its power-on state.
func (e *Engine) Reset() {
	e.Triggers.Reset()
	e.Results.Reset()
	e.Layers.Reset()
	e.Output.Clear()
	e.Pixels.Control(kll.AnimationClear)
	e.Pixels.DrainEvents()
	e.feedback = e.feedback[:0]
	e.cycle = 0
}
