package trigger

import (
	"time"

	"github.com/kiibohd/controller/macro/kll"
)

// schedProgress tracks how far one state-scheduled guide element has come.
type schedProgress struct {
	idx   int
	since time.Time
}

// precedes reports whether an event in state got is the natural lead-in to
// want: a press comes before a hold, a hold before a release.
func precedes(got, want kll.ScheduleState) bool {
	g, w := got.Base(), want.Base()
	switch w {
	case kll.StateHold:
		return g == kll.StatePress || g == kll.StateUniquePress
	case kll.StateRelease, kll.StateUniqueRelease:
		return g == kll.StatePress || g == kll.StateUniquePress || g == kll.StateHold
	}
	return false
}

func scheduleStateMatches(want, got kll.ScheduleState, typ kll.TriggerType) bool {
	switch {
	case typ.IsAnalog(), typ == kll.TriggerRotation1:
		return want == got
	case typ.IsLayer(), typ.IsAnimation():
		if !layerBitsMatch(want, got) {
			return false
		}
	}
	return want.Base() == got.Base()
}

// evalScheduled votes one event against a state-scheduled element, advancing
// p through the schedule. Entries are consumed strictly in order; an entry is
// satisfied once its state has been observed for at least its window.
//
// A state change before the window elapsed fails the element. An unfinished
// schedule sustains the macro so it survives into the next cycle.
func evalScheduled(p *schedProgress, g kll.TriggerGuide, ev kll.TriggerEvent, now time.Time) Vote {
	if !g.Matches(ev) {
		return VoteInvalid
	}
	s := g.Schedule

	if p.idx >= len(s) {
		if ev.State.IsRelease() {
			return VoteRelease
		}
		return VotePass
	}

	entry := s[p.idx]
	if scheduleStateMatches(entry.State, ev.State, ev.Type) {
		if p.since.IsZero() {
			p.since = now
		}
		if now.Sub(p.since) < entry.Min {
			return VoteSustain
		}
		p.idx++
		p.since = time.Time{}
		if p.idx < len(s) {
			return VoteSustain
		}
		if entry.State.IsRelease() {
			return VotePassRelease
		}
		return VotePass
	}

	// The entry has not been reached yet but the input is on its way there.
	if p.since.IsZero() && precedes(ev.State, entry.State) {
		return VoteSustain
	}
	// Still in the state the previous entry asked for.
	if p.since.IsZero() && p.idx > 0 && scheduleStateMatches(s[p.idx-1].State, ev.State, ev.Type) {
		return VoteSustain
	}
	return VoteFail
}
