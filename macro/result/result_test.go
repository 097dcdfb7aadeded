package result_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/kll"
	"github.com/kiibohd/controller/macro/result"
)

type recorder struct{ calls []string }

func (r *recorder) Key(code uint8, pressed bool) {
	r.calls = append(r.calls, fmt.Sprintf("key 0x%02x %t", code, pressed))
}

func (r *recorder) Consumer(code uint16, pressed bool) {
	r.calls = append(r.calls, fmt.Sprintf("cons 0x%03x %t", code, pressed))
}

func (r *recorder) System(code uint8, pressed bool) {
	r.calls = append(r.calls, fmt.Sprintf("sys 0x%02x %t", code, pressed))
}

func (r *recorder) StateSet(l kll.LayerIndex, mode kll.LayerMode) error {
	r.calls = append(r.calls, fmt.Sprintf("layer %d %s", l, mode))
	return nil
}

func (r *recorder) Rotate(next bool) error {
	r.calls = append(r.calls, fmt.Sprintf("rotate %t", next))
	return nil
}

func (r *recorder) Animation(index uint16) error {
	r.calls = append(r.calls, fmt.Sprintf("animation %d", index))
	return nil
}

func (r *recorder) Control(mode kll.AnimationMode) {
	r.calls = append(r.calls, fmt.Sprintf("control %s", mode))
}

func (r *recorder) take() []string {
	out := r.calls
	r.calls = nil
	return out
}

func newEngine(t *testing.T, capacity int, results ...kll.ResultMacro) (*result.Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := &kll.Map{Results: results}
	e := result.New(m, result.Handlers{
		Output:    rec,
		Layers:    rec,
		Pixels:    rec,
		FlashMode: func() { rec.calls = append(rec.calls, "flash") },
	}, result.Options{DelayedCapacity: capacity, Logger: log.Discard()})
	return e, rec
}

func single(caps ...kll.Capability) kll.ResultMacro {
	return kll.ResultMacro{Guide: []kll.ResultCombo{caps}}
}

func sequence(combos ...kll.ResultCombo) kll.ResultMacro {
	return kll.ResultMacro{Guide: combos}
}

func TestSingleCombo(t *testing.T) {
	type testCase struct {
		name     string
		states   []kll.CapabilityState
		expected []string
	}
	cases := []testCase{
		{
			name:     "press",
			states:   []kll.CapabilityState{kll.CapabilityInitial},
			expected: []string{"key 0x04 true", "cons 0x0e9 true"},
		},
		{
			name:     "hold",
			states:   []kll.CapabilityState{kll.CapabilityAny},
			expected: []string{"key 0x04 true", "cons 0x0e9 true"},
		},
		{
			name:     "release",
			states:   []kll.CapabilityState{kll.CapabilityLast},
			expected: []string{"key 0x04 false", "cons 0x0e9 false"},
		},
		{
			name:     "press and release in one cycle",
			states:   []kll.CapabilityState{kll.CapabilityInitial, kll.CapabilityLast},
			expected: []string{"key 0x04 true", "cons 0x0e9 true", "key 0x04 false", "cons 0x0e9 false"},
		},
		{
			name:     "none is ignored",
			states:   []kll.CapabilityState{kll.CapabilityNone},
			expected: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, rec := newEngine(t, 0, single(kll.USBKey{Code: 0x04}, kll.ConsumerControl{Code: 0xE9}))
			for _, s := range tc.states {
				e.Append(0, 7, s, kll.TriggerSwitch1)
			}
			e.Process()
			assert.Equal(t, tc.expected, rec.take())
			assert.Empty(t, e.Pending(), "single-combo results finish within one cycle")
		})
	}
}

func TestSequenceResult(t *testing.T) {
	e, rec := newEngine(t, 0, sequence(
		kll.ResultCombo{kll.USBKey{Code: 0x0B}},
		kll.ResultCombo{kll.USBKey{Code: 0x08}},
	))

	e.Append(0, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
	e.Process()
	assert.Equal(t, []string{"key 0x0b true"}, rec.take())
	assert.Equal(t, []kll.ResultIndex{0}, e.Pending())

	// Appends while running do not restart it.
	e.Append(0, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
	e.Process()
	assert.Equal(t, []string{"key 0x0b false", "key 0x08 true"}, rec.take())

	e.Process()
	assert.Equal(t, []string{"key 0x08 false"}, rec.take())
	assert.Empty(t, e.Pending())

	e.Process()
	assert.Empty(t, rec.take())
}

func TestCapabilityStates(t *testing.T) {
	type testCase struct {
		name     string
		c        kll.Capability
		expected map[kll.CapabilityState][]string
	}
	cases := []testCase{
		{
			name: "shift",
			c:    kll.LayerShiftCap{Layer: 1},
			expected: map[kll.CapabilityState][]string{
				kll.CapabilityInitial: {"layer 1 shift"},
				kll.CapabilityLast:    {"layer 1 shift"},
			},
		},
		{
			name: "latch",
			c:    kll.LayerLatchCap{Layer: 2},
			expected: map[kll.CapabilityState][]string{
				kll.CapabilityLast: {"layer 2 latch"},
			},
		},
		{
			name: "lock",
			c:    kll.LayerLockCap{Layer: 1},
			expected: map[kll.CapabilityState][]string{
				kll.CapabilityInitial: {"layer 1 lock"},
			},
		},
		{
			name: "rotate",
			c:    kll.LayerRotateCap{Next: true},
			expected: map[kll.CapabilityState][]string{
				kll.CapabilityInitial: {"rotate true"},
			},
		},
		{
			name: "system",
			c:    kll.SystemControl{Code: 0x82},
			expected: map[kll.CapabilityState][]string{
				kll.CapabilityInitial: {"sys 0x82 true"},
				kll.CapabilityAny:     {"sys 0x82 true"},
				kll.CapabilityLast:    {"sys 0x82 false"},
			},
		},
		{
			name:     "no-op",
			c:        kll.NoOpCap{},
			expected: map[kll.CapabilityState][]string{},
		},
	}
	states := []kll.CapabilityState{kll.CapabilityInitial, kll.CapabilityAny, kll.CapabilityLast}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, rec := newEngine(t, 0)
			for _, s := range states {
				e.Invoke(tc.c, result.Invocation{State: s})
				assert.Equal(t, tc.expected[s], rec.take(), "state %s", s)
			}
		})
	}
}

func TestDebugStateOnlyReports(t *testing.T) {
	e, rec := newEngine(t, 0)
	for _, c := range kll.Capabilities() {
		e.Invoke(c, result.Invocation{State: kll.CapabilityDebug})
	}
	assert.Empty(t, rec.take())
}

func TestDelayedCapabilities(t *testing.T) {
	e, rec := newEngine(t, 0, single(kll.USBKey{Code: 0x04}, kll.AnimationCap{Index: 3}, kll.FlashModeCap{}))

	e.Append(0, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
	e.Process()
	assert.Equal(t, []string{"key 0x04 true"}, rec.take(), "unsafe capabilities wait for ProcessDelayed")
	assert.Equal(t, 2, e.Delayed())

	e.ProcessDelayed()
	assert.Equal(t, []string{"animation 3", "flash"}, rec.take())
	assert.Zero(t, e.Delayed())
}

func TestDelayedStackFull(t *testing.T) {
	e, rec := newEngine(t, 2, single(
		kll.AnimationControlCap{Mode: kll.AnimationPause},
		kll.AnimationControlCap{Mode: kll.AnimationResume},
		kll.AnimationControlCap{Mode: kll.AnimationStop},
	))

	e.Append(0, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
	e.Process()
	require.Equal(t, 2, e.Delayed())

	e.ProcessDelayed()
	assert.Equal(t, []string{
		"control " + kll.AnimationPause.String(),
		"control " + kll.AnimationResume.String(),
	}, rec.take())
}

func TestNilHandlers(t *testing.T) {
	m := &kll.Map{Results: []kll.ResultMacro{single(
		kll.USBKey{Code: 0x04},
		kll.LayerShiftCap{Layer: 1},
		kll.AnimationCap{},
		kll.FlashModeCap{},
	)}}
	e := result.New(m, result.Handlers{}, result.Options{Logger: log.Discard()})
	assert.NotPanics(t, func() {
		e.Append(0, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
		e.Process()
		e.ProcessDelayed()
	})
}

func TestAppendUnknownResult(t *testing.T) {
	e, _ := newEngine(t, 0)
	e.Append(3, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
	assert.Empty(t, e.Pending())
}

func TestReset(t *testing.T) {
	e, _ := newEngine(t, 0, single(kll.AnimationCap{}))
	e.Append(0, 0, kll.CapabilityInitial, kll.TriggerSwitch1)
	e.Process()
	e.Append(0, 0, kll.CapabilityAny, kll.TriggerSwitch1)
	e.Reset()
	assert.Empty(t, e.Pending())
	assert.Zero(t, e.Delayed())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "usbKeyOut          safe", result.Describe(kll.USBKey{}))
	assert.Equal(t, "flashMode          delayed", result.Describe(kll.FlashModeCap{}))
}
