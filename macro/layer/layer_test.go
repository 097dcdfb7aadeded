package layer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/macro/kll"
	"github.com/kiibohd/controller/macro/layer"
)

func keymap(t *testing.T) *kll.Map {
	t.Helper()
	m, err := kll.Compile(kll.File{Layers: []kll.LayerFile{
		{Name: "base", Map: []kll.BindingFile{
			{Trigger: "S0x01", Result: `U"A"`},
			{Trigger: "S0x02", Result: `U"B"`},
		}},
		{Name: "fn", Map: []kll.BindingFile{
			{Trigger: "S0x01", Result: `U"1"`},
		}},
		{Name: "nav", Map: []kll.BindingFile{
			{Trigger: "S0x01", Result: `U"Left"`},
		}},
	}})
	require.NoError(t, err)
	return m
}

func press(i uint8) kll.TriggerEvent {
	return kll.TriggerEvent{Type: kll.TriggerSwitch1, State: kll.StatePress, Index: i}
}

func release(i uint8) kll.TriggerEvent {
	return kll.TriggerEvent{Type: kll.TriggerSwitch1, State: kll.StateRelease, Index: i}
}

func TestStateSetMaintainsStack(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	var notified []kll.LayerMode
	s.SetNotify(func(l kll.LayerIndex, mode kll.LayerMode) { notified = append(notified, mode) })

	require.NoError(t, s.Shift(1))
	require.NoError(t, s.Lock(2))
	assert.Equal(t, []kll.LayerIndex{1, 2}, s.Stack())
	assert.Equal(t, kll.LayerShift, s.Mode(1))

	// Adding a second mode keeps the position on the stack.
	require.NoError(t, s.Lock(1))
	assert.Equal(t, []kll.LayerIndex{1, 2}, s.Stack())
	assert.Equal(t, kll.LayerShift|kll.LayerLock, s.Mode(1))

	require.NoError(t, s.Shift(1))
	require.NoError(t, s.Lock(1))
	assert.Equal(t, []kll.LayerIndex{2}, s.Stack())
	assert.Equal(t, kll.LayerOff, s.Mode(1))

	assert.Equal(t, []kll.TriggerEvent{
		{Type: kll.TriggerLayer1, State: 0x11, Index: 1},
		{Type: kll.TriggerLayer1, State: 0x41, Index: 2},
		{Type: kll.TriggerLayer1, State: 0x42, Index: 1},
		{Type: kll.TriggerLayer1, State: 0x12, Index: 1},
		{Type: kll.TriggerLayer1, State: 0x43, Index: 1},
	}, s.DrainEvents())
	assert.Nil(t, s.DrainEvents())
	assert.Equal(t, []kll.LayerMode{
		kll.LayerShift, kll.LayerLock, kll.LayerShift | kll.LayerLock, kll.LayerLock, kll.LayerOff,
	}, notified)
}

func TestStateSetBounds(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	assert.ErrorIs(t, s.StateSet(3, kll.LayerShift), layer.ErrRange)

	// The default layer is never stacked.
	assert.NoError(t, s.StateSet(0, kll.LayerLock))
	assert.Empty(t, s.Stack())
	assert.Nil(t, s.DrainEvents())
}

func TestUsable(t *testing.T) {
	type testCase struct {
		mode   kll.LayerMode
		usable bool
	}
	cases := []testCase{
		{kll.LayerOff, false},
		{kll.LayerShift, true},
		{kll.LayerLatch, true},
		{kll.LayerLock, true},
		{kll.LayerShift | kll.LayerLock, false},
		{kll.LayerShift | kll.LayerLatch, false},
		{kll.LayerShift | kll.LayerLatch | kll.LayerLock, true},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			assert.Equal(t, tc.usable, layer.Usable(tc.mode))
		})
	}
}

func TestLookupKeepsPressAndReleaseTogether(t *testing.T) {
	m := keymap(t)
	s := layer.New(m, log.Discard())
	base, _, err := s.Lookup(press(1), true)
	require.NoError(t, err)

	require.NoError(t, s.Shift(1))
	fn, l, err := s.Lookup(press(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(1), l)
	assert.NotEqual(t, base, fn)

	// The layer goes away while the key is down; the release still resolves
	// on the layer the press came from.
	require.NoError(t, s.Shift(1))
	got, l, err := s.Lookup(release(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(1), l)
	assert.Equal(t, fn, got)

	got, l, err = s.Lookup(press(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(0), l)
	assert.Equal(t, base, got)
}

func TestLookupFallsThroughToLowerLayers(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	require.NoError(t, s.Lock(2))
	require.NoError(t, s.Lock(1))

	_, l, err := s.Lookup(press(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(1), l, "most recently activated layer wins")

	_, l, err = s.Lookup(press(2), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(0), l, "unmapped on fn and nav")

	_, _, err = s.Lookup(press(9), true)
	assert.ErrorIs(t, err, layer.ErrNotFound)
}

func TestLatchIsOneShot(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	require.NoError(t, s.Latch(1))

	_, l, err := s.Lookup(press(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(1), l)
	assert.Equal(t, kll.LayerOff, s.Mode(1))
	assert.Empty(t, s.Stack())

	_, l, err = s.Lookup(press(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(0), l)
}

func TestLatchSurvivesHoldOfUnmappedKey(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	require.NoError(t, s.Latch(1))

	type testCase struct {
		name string
		ev   kll.TriggerEvent
	}
	cases := []testCase{
		{name: "hold", ev: kll.TriggerEvent{Type: kll.TriggerSwitch1, State: kll.StateHold, Index: 9}},
		{name: "release", ev: release(9)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, l, err := s.Lookup(tc.ev, true)
			assert.ErrorIs(t, err, layer.ErrNotFound)
			assert.Equal(t, kll.LayerIndex(0), l)
			assert.Equal(t, kll.LayerLatch, s.Mode(1), "only the cached layer's latch may expire")
		})
	}

	_, l, err := s.Lookup(press(1), true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(1), l)
	assert.Equal(t, kll.LayerOff, s.Mode(1))
}

func TestHoldWithoutPressResolvesOnDefaultLayer(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	require.NoError(t, s.Lock(1))

	_, l, err := s.Lookup(kll.TriggerEvent{Type: kll.TriggerSwitch1, State: kll.StateHold, Index: 1}, true)
	require.NoError(t, err)
	assert.Equal(t, kll.LayerIndex(0), l, "no press was seen, so the stack is not consulted")
	assert.Equal(t, kll.LayerLock, s.Mode(1))
}

func TestLatchSurvivesNonExpiringLookups(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	require.NoError(t, s.Latch(1))

	ev := kll.TriggerEvent{Type: kll.TriggerLayer1, State: kll.StateActivate, Index: 1}
	_, _, _ = s.Lookup(ev, false)
	assert.Equal(t, kll.LayerLatch, s.Mode(1))
}

func TestRotate(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())

	require.NoError(t, s.Rotate(true))
	assert.Equal(t, []kll.LayerIndex{1}, s.Stack())

	require.NoError(t, s.Rotate(true))
	assert.Equal(t, []kll.LayerIndex{2}, s.Stack())
	assert.Equal(t, kll.LayerOff, s.Mode(1))

	require.NoError(t, s.Rotate(true))
	assert.Empty(t, s.Stack(), "wraps to the default layer")

	require.NoError(t, s.Rotate(false))
	assert.Equal(t, []kll.LayerIndex{2}, s.Stack())
}

func TestReset(t *testing.T) {
	s := layer.New(keymap(t), log.Discard())
	require.NoError(t, s.Lock(1))
	s.Reset()
	assert.Empty(t, s.Stack())
	assert.Equal(t, kll.LayerOff, s.Mode(1))
	assert.Nil(t, s.DrainEvents())
	assert.Equal(t, "fn", s.Name(1))
	assert.Equal(t, 3, s.Len())
}
