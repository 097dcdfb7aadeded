package trigger

import "github.com/kiibohd/controller/macro/kll"

// Vote is the verdict of one guide element (or a whole combo) against the
// events of a scan cycle.
//
// Non-pass votes are totally ordered: Invalid < DoNothing < DoNothingRelease
// < Fail < Sustain. Pass, Release and PassRelease form the pass class; they
// dominate every non-pass vote inside an element and combine by union.
type Vote uint8

const (
	// VoteInvalid means no event addressed the element.
	VoteInvalid Vote = iota
	// VoteDoNothing leaves the macro where it is.
	VoteDoNothing
	// VoteDoNothingRelease acknowledges a release that needs no action.
	VoteDoNothingRelease
	// VoteFail drops the macro from the pending list.
	VoteFail
	// VoteSustain keeps an unfinished state-scheduled macro alive.
	VoteSustain
	// VotePass means the element is satisfied (pressed or held).
	VotePass
	// VoteRelease means a satisfied element was released.
	VoteRelease
	// VotePassRelease means pass and release landed in the same cycle.
	VotePassRelease
)

func (v Vote) String() string {
	switch v {
	case VoteInvalid:
		return "invalid"
	case VoteDoNothing:
		return "doNothing"
	case VoteDoNothingRelease:
		return "doNothingRelease"
	case VoteFail:
		return "fail"
	case VoteSustain:
		return "sustain"
	case VotePass:
		return "pass"
	case VoteRelease:
		return "release"
	case VotePassRelease:
		return "passRelease"
	}
	return "vote(?)"
}

// IsPass reports whether v is in the pass class.
func (v Vote) IsPass() bool { return v >= VotePass }

// HasPass reports whether v carries a pass (Pass or PassRelease).
func (v Vote) HasPass() bool { return v == VotePass || v == VotePassRelease }

// HasRelease reports whether v carries a release (Release or PassRelease).
func (v Vote) HasRelease() bool { return v == VoteRelease || v == VotePassRelease }

func union(a, b Vote) Vote {
	if a == b {
		return a
	}
	return VotePassRelease
}

// Merge folds the vote of one more event into the vote of a guide element.
// A pass-class vote masks out everything below it.
func Merge(a, b Vote) Vote {
	switch {
	case a.IsPass() && b.IsPass():
		return union(a, b)
	case a.IsPass():
		return a
	case b.IsPass():
		return b
	case a > b:
		return a
	}
	return b
}

// Combine folds the element votes of a combo into the combo vote.
//
// Fail wins, then Sustain. A combo only passes when every element is in the
// pass class; a partially satisfied combo reports Release if any element
// released and otherwise the strongest non-pass vote.
func Combine(votes ...Vote) Vote {
	if len(votes) == 0 {
		return VoteInvalid
	}
	var (
		passAll  = true
		pass     Vote
		other    Vote
		released bool
	)
	for _, v := range votes {
		switch {
		case v == VoteFail:
			return VoteFail
		case v.IsPass():
			if pass == VoteInvalid {
				pass = v
			} else {
				pass = union(pass, v)
			}
			if v.HasRelease() {
				released = true
			}
		default:
			passAll = false
			if v > other {
				other = v
			}
		}
	}
	switch {
	case other == VoteSustain:
		return VoteSustain
	case passAll:
		return pass
	case released:
		return VoteRelease
	}
	return other
}

// stateVote maps an event state to a vote for a guide expecting want. Both
// states are reduced to their base nibble first.
func stateVote(want, got kll.ScheduleState) Vote {
	w, g := want.Base(), got.Base()
	switch w {
	case kll.StateRelease, kll.StateUniqueRelease:
		if g == kll.StateRelease || g == kll.StateUniqueRelease {
			return VotePassRelease
		}
		return VoteDoNothing
	case kll.StateOff:
		if g == kll.StateOff {
			return VotePass
		}
		return VoteDoNothing
	}
	switch g {
	case kll.StatePress, kll.StateUniquePress, kll.StateHold:
		return VotePass
	case kll.StateRelease, kll.StateUniqueRelease:
		return VoteRelease
	}
	return VoteDoNothing
}

// layerBitsMatch applies the layer state filter: a guide naming layer state
// bits (0x70) only matches events caused by one of those states.
func layerBitsMatch(want, got kll.ScheduleState) bool {
	bits := want & kll.LayerStateBits
	return bits == 0 || got&bits != 0
}

// evalShort votes a single event against a guide of a single-combo macro.
func evalShort(ev kll.TriggerEvent, g kll.TriggerGuide) Vote {
	if !g.Matches(ev) {
		return VoteInvalid
	}
	switch {
	case ev.Type.IsAnalog():
		switch {
		case ev.State == g.State:
			return VotePass
		case ev.State == kll.StateOff:
			return VoteRelease
		}
		return VoteDoNothing
	case ev.Type == kll.TriggerRotation1:
		if ev.State == g.State {
			return VotePassRelease
		}
		return VoteDoNothing
	case ev.Type.IsLayer(), ev.Type.IsAnimation():
		if !layerBitsMatch(g.State, ev.State) {
			return VoteDoNothing
		}
	}
	return stateVote(g.State, ev.State)
}

// evalLong votes a single event against a guide of a sequence macro. Presses
// of switches outside the combo (and outside the still held previous combo)
// fail the element.
func evalLong(ev kll.TriggerEvent, g kll.TriggerGuide, combo, prev kll.Combo) Vote {
	if g.Matches(ev) {
		return evalShort(ev, g)
	}
	if !ev.Type.IsSwitch() || !ev.State.IsInitial() {
		return VoteDoNothing
	}
	if comboHas(combo, ev) || comboHas(prev, ev) {
		return VoteDoNothing
	}
	return VoteFail
}

func comboHas(c kll.Combo, ev kll.TriggerEvent) bool {
	for _, g := range c {
		if g.Matches(ev) {
			return true
		}
	}
	return false
}

// comboInitial reports whether any event in the buffer starts an activation
// of one of the combo's inputs.
func comboInitial(c kll.Combo, events []kll.TriggerEvent) bool {
	for _, ev := range events {
		if ev.State.IsInitial() && comboHas(c, ev) {
			return true
		}
	}
	return false
}

// comboHeld reports whether any input of the combo is still pressed or held.
func comboHeld(c kll.Combo, events []kll.TriggerEvent) bool {
	for _, ev := range events {
		if !comboHas(c, ev) {
			continue
		}
		switch ev.State.Base() {
		case kll.StatePress, kll.StateUniquePress, kll.StateHold:
			return true
		}
	}
	return false
}
