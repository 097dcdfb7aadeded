package macro

import (
	"sort"

	"github.com/kiibohd/controller/macro/kll"
)

// Matrix turns switch transitions into the per-cycle event stream a scan
// module produces: a press, a hold every following cycle and a release.
type Matrix struct {
	held map[kll.TriggerKey]bool
}

// NewMatrix returns a matrix with every switch up.
func NewMatrix() *Matrix {
	return &Matrix{held: make(map[kll.TriggerKey]bool)}
}

// Press marks key as pressed. It returns the press event, or false when the
// key is already down.
func (m *Matrix) Press(key kll.TriggerKey) (kll.TriggerEvent, bool) {
	if m.held[key] {
		return kll.TriggerEvent{}, false
	}
	m.held[key] = true
	return kll.TriggerEvent{Type: key.Type, State: kll.StatePress, Index: key.Index}, true
}

// Release marks key as released. It returns the release event, or false
// when the key was not down.
func (m *Matrix) Release(key kll.TriggerKey) (kll.TriggerEvent, bool) {
	if !m.held[key] {
		return kll.TriggerEvent{}, false
	}
	delete(m.held, key)
	return kll.TriggerEvent{Type: key.Type, State: kll.StateRelease, Index: key.Index}, true
}

// Holds returns a hold event for every key down, excluding skip, ordered
// by key.
func (m *Matrix) Holds(skip map[kll.TriggerKey]bool) []kll.TriggerEvent {
	out := make([]kll.TriggerEvent, 0, len(m.held))
	for k := range m.held {
		if skip[k] {
			continue
		}
		out = append(out, kll.TriggerEvent{Type: k.Type, State: kll.StateHold, Index: k.Index})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Held reports whether key is down.
func (m *Matrix) Held(key kll.TriggerKey) bool { return m.held[key] }
