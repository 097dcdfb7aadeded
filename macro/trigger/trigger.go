// Package trigger implements the trigger macro state machine.
//
// Every scan cycle the engine admits the trigger macros mapped for the
// incoming events to its pending list, votes each pending macro against the
// event buffer and hands satisfied macros to the result engine.
//
// Single-combo macros carry no position across cycles: they are dropped at
// the end of every cycle and re-admitted by the next matching event.
// Sequence macros keep their combo position until they complete or fail.
package trigger

import (
	"log/slog"
	"time"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/internal/pending"
	"github.com/kiibohd/controller/macro/kll"
	"github.com/kiibohd/controller/macro/layer"
)

// State is the state of a trigger macro record.
type State uint8

const (
	Waiting State = iota
	Press
	Release
	PressRelease
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Press:
		return "press"
	case Release:
		return "release"
	case PressRelease:
		return "pressRelease"
	}
	return "state(?)"
}

// Record is the mutable progress of one trigger macro.
type Record struct {
	Pos          int
	PrevPos      int
	State        State
	LastPosEvent time.Time
	Layer        kll.LayerIndex

	sched []schedProgress
}

// ResultSink receives the result macros fired by satisfied triggers.
type ResultSink interface {
	Append(r kll.ResultIndex, t kll.TriggerIndex, state kll.CapabilityState, stateType kll.TriggerType)
}

// Resolver maps an event to its candidate trigger macros.
type Resolver interface {
	Lookup(ev kll.TriggerEvent, latchExpire bool) ([]kll.TriggerIndex, kll.LayerIndex, error)
}

var _ Resolver = (*layer.Stack)(nil)

// Options configures an Engine.
type Options struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Engine is the trigger macro engine.
type Engine struct {
	m        *kll.Map
	resolver Resolver
	sink     ResultSink
	records  []Record
	pending  *pending.List[kll.TriggerIndex]
	now      func() time.Time
	logger   *slog.Logger
}

// New returns an engine for keymap m.
func New(m *kll.Map, resolver Resolver, sink ResultSink, opts Options) *Engine {
	e := &Engine{
		m:        m,
		resolver: resolver,
		sink:     sink,
		records:  make([]Record, len(m.Triggers)),
		pending:  pending.New[kll.TriggerIndex](len(m.Triggers)),
		now:      opts.Clock,
		logger:   log.Component(opts.Logger, "trigger"),
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.Reset()
	return e
}

// Reset clears the pending list and every record.
func (e *Engine) Reset() {
	e.pending.Clear()
	now := e.now()
	for i := range e.records {
		e.resetRecord(kll.TriggerIndex(i), 0, now)
	}
}

// Pending returns the trigger macros currently under evaluation.
func (e *Engine) Pending() []kll.TriggerIndex { return e.pending.Items() }

// Record returns a copy of the record of trigger macro i.
func (e *Engine) Record(i kll.TriggerIndex) Record {
	r := e.records[i]
	r.sched = nil
	return r
}

func (e *Engine) resetRecord(i kll.TriggerIndex, l kll.LayerIndex, now time.Time) {
	r := &e.records[i]
	r.Pos = 0
	r.PrevPos = 0
	r.State = Waiting
	r.LastPosEvent = now
	r.Layer = l
	r.sched = r.sched[:0]
}

// Process runs one scan cycle over events.
func (e *Engine) Process(events []kll.TriggerEvent) {
	now := e.now()
	e.updatePending(events, now)
	e.pending.Retain(func(i kll.TriggerIndex) bool {
		keep := e.evaluate(i, events, now)
		if !keep {
			e.resetRecord(i, 0, now)
		}
		return keep
	})
}

// updatePending admits every macro mapped for the incoming events that is
// not already pending, with a fresh record.
func (e *Engine) updatePending(events []kll.TriggerEvent, now time.Time) {
	for _, ev := range events {
		list, l, err := e.resolver.Lookup(ev, ev.Type.IsSwitch())
		if err != nil {
			continue
		}
		for _, ti := range list {
			if e.pending.Contains(ti) {
				continue
			}
			e.resetRecord(ti, l, now)
			if !e.pending.Add(ti) {
				e.logger.Warn("pending list full", "trigger", ti)
			}
		}
	}
}

// Vote returns the combo vote of trigger macro i against events at its
// current position.
func (e *Engine) Vote(i kll.TriggerIndex, events []kll.TriggerEvent) Vote {
	return e.overallVote(i, events, e.now())
}

func (e *Engine) overallVote(i kll.TriggerIndex, events []kll.TriggerEvent, now time.Time) Vote {
	m := &e.m.Triggers[i]
	r := &e.records[i]
	combo := m.Guide[r.Pos]
	long := m.Long()

	var prev kll.Combo
	if long && r.Pos > 0 && r.PrevPos != r.Pos {
		prev = m.Guide[r.PrevPos]
	}
	if combo.Scheduled() && len(r.sched) != len(combo) {
		r.sched = append(r.sched[:0], make([]schedProgress, len(combo))...)
	}

	votes := make([]Vote, len(combo))
	for gi, g := range combo {
		v := VoteInvalid
		for _, ev := range events {
			var cur Vote
			switch {
			case g.Scheduled():
				cur = evalScheduled(&r.sched[gi], g, ev, now)
			case long:
				cur = evalLong(ev, g, combo, prev)
			default:
				cur = evalShort(ev, g)
			}
			v = Merge(v, cur)
		}
		// Short macros fail an element nothing satisfied. Sequence macros
		// already vote Fail on wrong keys and wait otherwise.
		if !long && !v.IsPass() && v != VoteSustain {
			v = VoteFail
		}
		votes[gi] = v
	}
	return Combine(votes...)
}

// evaluate applies one cycle to pending macro i and reports whether it stays
// pending.
func (e *Engine) evaluate(i kll.TriggerIndex, events []kll.TriggerEvent, now time.Time) bool {
	m := &e.m.Triggers[i]
	vote := e.overallVote(i, events, now)
	e.logger.Log(nil, log.LevelTrace, "vote", "trigger", i, "name", m.Name, "pos", e.records[i].Pos, "state", e.records[i].State, "vote", vote)
	if m.Long() {
		return e.evaluateLong(i, m, vote, events, now)
	}
	return e.evaluateShort(i, m, vote, events)
}

func (e *Engine) evaluateShort(i kll.TriggerIndex, m *kll.TriggerMacro, vote Vote, events []kll.TriggerEvent) bool {
	r := &e.records[i]
	combo := m.Guide[0]
	scheduled := combo.Scheduled()

	switch {
	case vote == VoteFail:
		return false
	case vote == VoteSustain:
		return true
	case vote.IsPass():
		initial := r.State == Waiting && (scheduled || comboInitial(combo, events))
		switch vote {
		case VotePass:
			r.State = Press
		case VoteRelease:
			r.State = Release
		case VotePassRelease:
			r.State = PressRelease
		}
		e.fire(i, m, vote, initial)
	}
	// A scheduled macro that passed has schedule progress worth keeping until
	// its inputs release.
	return scheduled && r.State == Press
}

func (e *Engine) evaluateLong(i kll.TriggerIndex, m *kll.TriggerMacro, vote Vote, events []kll.TriggerEvent, now time.Time) bool {
	r := &e.records[i]
	last := r.Pos == len(m.Guide)-1

	// The previous combo is done once none of its inputs is held any more;
	// from then on pressing one of them again breaks the sequence.
	if r.Pos > 0 && r.PrevPos != r.Pos && !comboHeld(m.Guide[r.PrevPos], events) {
		r.PrevPos = r.Pos
	}

	switch vote {
	case VoteFail:
		return false
	case VotePass:
		if r.State == Waiting {
			r.State = Press
			r.LastPosEvent = now
			if last {
				e.fire(i, m, VotePass, true)
			}
		} else if last {
			e.fire(i, m, VotePass, false)
		}
	case VoteRelease, VotePassRelease:
		wasWaiting := r.State == Waiting
		if wasWaiting && vote == VoteRelease {
			// Released without having been pressed while pending.
			return true
		}
		if last {
			if wasWaiting {
				r.State = PressRelease
				e.fire(i, m, VotePassRelease, true)
			} else {
				r.State = Release
				e.fire(i, m, VoteRelease, false)
			}
			return false
		}
		r.PrevPos = r.Pos
		r.Pos++
		r.State = Waiting
		r.LastPosEvent = now
		r.sched = r.sched[:0]
		e.logger.Debug("sequence advanced", "trigger", i, "name", m.Name, "pos", r.Pos)
	}
	return true
}

// fire hands a satisfied trigger to the result engine. Single-combo results
// follow the trigger continuously, sequence results start once on the
// initial press, scheduled results run once the trigger has passed and
// released.
func (e *Engine) fire(i kll.TriggerIndex, m *kll.TriggerMacro, vote Vote, initial bool) {
	if e.sink == nil {
		return
	}
	res := &e.m.Results[m.Result]
	// Results see the type of the combo that completed the trigger.
	stateType := m.Guide[min(e.records[i].Pos, len(m.Guide)-1)][0].Type

	switch {
	case res.Scheduled:
		if vote.HasRelease() {
			e.sink.Append(m.Result, i, kll.CapabilityInitial, stateType)
			e.sink.Append(m.Result, i, kll.CapabilityLast, stateType)
		}
	case res.Long():
		if vote.HasPass() && initial {
			e.sink.Append(m.Result, i, kll.CapabilityInitial, stateType)
		}
	default:
		if vote.HasPass() {
			state := kll.CapabilityAny
			if initial {
				state = kll.CapabilityInitial
			}
			e.sink.Append(m.Result, i, state, stateType)
		}
		if vote.HasRelease() {
			e.sink.Append(m.Result, i, kll.CapabilityLast, stateType)
		}
	}
}
