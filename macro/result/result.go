// Package result executes result macros fired by the trigger engine.
//
// A single-combo result runs once per cycle with the state its trigger
// reported. A sequence result runs one combo per cycle, releasing the
// previous combo before pressing the next one, until it completes.
//
// Capabilities that only touch engine-local state run inline. The others
// are queued on a bounded stack and run by ProcessDelayed while the guard is
// held, so they never interleave with the periodic task sharing that state.
package result

import (
	"log/slog"
	"sync"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/internal/pending"
	"github.com/kiibohd/controller/macro/kll"
)

// DefaultDelayedCapacity is the delayed stack size used when Options leaves
// it unset.
const DefaultDelayedCapacity = 25

// Invocation carries the context a capability is called with.
type Invocation struct {
	Trigger   kll.TriggerIndex
	State     kll.CapabilityState
	StateType kll.TriggerType
}

// Record is the mutable progress of one result macro.
type Record struct {
	Pos       int
	PrevPos   int
	State     kll.CapabilityState
	StateType kll.TriggerType
	Trigger   kll.TriggerIndex

	// release queues a Last right after State in the same cycle.
	release bool
}

type delayedCall struct {
	c   kll.Capability
	inv Invocation
}

// Options configures an Engine.
type Options struct {
	// DelayedCapacity bounds the delayed capability stack.
	DelayedCapacity int
	// Guard serialises delayed capabilities against the periodic task.
	// Defaults to a private mutex.
	Guard  sync.Locker
	Logger *slog.Logger
}

// Engine is the result macro engine.
type Engine struct {
	m        *kll.Map
	h        Handlers
	records  []Record
	pending  *pending.List[kll.ResultIndex]
	delayed  []delayedCall
	capacity int
	guard    sync.Locker
	logger   *slog.Logger
}

// New returns an engine executing the results of keymap m through h.
func New(m *kll.Map, h Handlers, opts Options) *Engine {
	if opts.DelayedCapacity <= 0 {
		opts.DelayedCapacity = DefaultDelayedCapacity
	}
	if opts.Guard == nil {
		opts.Guard = &sync.Mutex{}
	}
	return &Engine{
		m:        m,
		h:        h,
		records:  make([]Record, len(m.Results)),
		pending:  pending.New[kll.ResultIndex](len(m.Results)),
		delayed:  make([]delayedCall, 0, opts.DelayedCapacity),
		capacity: opts.DelayedCapacity,
		guard:    opts.Guard,
		logger:   log.Component(opts.Logger, "result"),
	}
}

// Guard returns the lock held while delayed capabilities run.
func (e *Engine) Guard() sync.Locker { return e.guard }

// Pending returns the result macros queued for the next Process.
func (e *Engine) Pending() []kll.ResultIndex { return e.pending.Items() }

// Record returns a copy of the record of result macro r.
func (e *Engine) Record(r kll.ResultIndex) Record { return e.records[r] }

// Delayed returns the number of queued delayed capability calls.
func (e *Engine) Delayed() int { return len(e.delayed) }

// Reset drops everything pending, including delayed calls.
func (e *Engine) Reset() {
	e.pending.Clear()
	for i := range e.records {
		e.records[i] = Record{}
	}
	e.delayed = e.delayed[:0]
}

// Append queues result macro r, fired by trigger t.
//
// A sequence result that is already running ignores further appends. A
// single-combo result appended twice in one cycle keeps the first state and
// follows it with a release when the second one is Last.
func (e *Engine) Append(r kll.ResultIndex, t kll.TriggerIndex, state kll.CapabilityState, stateType kll.TriggerType) {
	if int(r) >= len(e.records) {
		e.logger.Warn("unknown result macro", "result", r, "trigger", t)
		return
	}
	rec := &e.records[r]
	if e.pending.Contains(r) {
		if e.m.Results[r].Long() {
			return
		}
		if state == kll.CapabilityLast && rec.State != kll.CapabilityLast {
			rec.release = true
		} else {
			rec.State = state
		}
		return
	}
	*rec = Record{State: state, StateType: stateType, Trigger: t}
	e.pending.Add(r)
}

// Process runs one cycle of every pending result macro.
func (e *Engine) Process() {
	e.pending.Retain(func(r kll.ResultIndex) bool {
		keep := e.run(r)
		if !keep {
			e.records[r] = Record{}
		}
		return keep
	})
}

func (e *Engine) run(r kll.ResultIndex) bool {
	m := &e.m.Results[r]
	rec := &e.records[r]
	inv := Invocation{Trigger: rec.Trigger, State: rec.State, StateType: rec.StateType}

	if !m.Long() {
		if len(m.Guide) > 0 {
			e.runCombo(m.Guide[0], inv)
			if rec.release {
				inv.State = kll.CapabilityLast
				e.runCombo(m.Guide[0], inv)
			}
		}
		return false
	}

	// Release the combo pressed last cycle before moving on.
	if rec.Pos > 0 {
		inv.State = kll.CapabilityLast
		e.runCombo(m.Guide[rec.PrevPos], inv)
	}
	if rec.Pos >= len(m.Guide) {
		e.logger.Debug("result complete", "result", r, "name", m.Name)
		return false
	}
	inv.State = kll.CapabilityInitial
	e.runCombo(m.Guide[rec.Pos], inv)
	rec.PrevPos = rec.Pos
	rec.Pos++
	return true
}

func (e *Engine) runCombo(c kll.ResultCombo, inv Invocation) {
	for _, capability := range c {
		if capability.Safe() {
			e.Invoke(capability, inv)
			continue
		}
		if len(e.delayed) >= e.capacity {
			e.logger.Warn("delayed capability stack full, dropping call", "capability", capability, "state", inv.State)
			continue
		}
		e.delayed = append(e.delayed, delayedCall{c: capability, inv: inv})
	}
}

// ProcessDelayed runs the queued delayed capabilities in order while holding
// the guard.
func (e *Engine) ProcessDelayed() {
	if len(e.delayed) == 0 {
		return
	}
	e.guard.Lock()
	defer e.guard.Unlock()
	for _, d := range e.delayed {
		e.Invoke(d.c, d.inv)
	}
	clear(e.delayed)
	e.delayed = e.delayed[:0]
}
