package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestHistory_Bounded(t *testing.T) {
	h := NewHistory[int](3)
	for i := 0; i < 10; i++ {
		h.Push(i)
		assert.LessOrEqual(t, h.Len(), 3)
	}
	assert.Equal(t, []int{7, 8, 9}, h.Entries())

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 3, h.Cap())
}

func TestNewHistory_MinimumCapacity(t *testing.T) {
	h := NewHistory[int](0)
	h.Push(1)
	h.Push(2)
	assert.Equal(t, []int{2}, h.Entries())
}

func TestStabilizer_RawBelowThreeSamples(t *testing.T) {
	s := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)

	first := FingerPosition{X: 0.1, Y: 0.2, Angle: 1, Finger: FingerRing}
	second := FingerPosition{X: 0.5, Y: 0.6, Angle: 2, Finger: FingerRing}

	assert.Equal(t, first, s.Stabilize(first))
	assert.Equal(t, second, s.Stabilize(second))
}

func TestStabilizer_Convergence(t *testing.T) {
	tests := []struct {
		name string
		pos  TargetPosition
	}{
		{"finger", FingerPosition{X: -0.2, Y: 0.3, Z: 0.001, Width: 0.2, Length: 0.14, Angle: -0.78, Finger: FingerIndex}},
		{"wrist", WristPosition{X: 0.1, Y: -0.4, Z: 0, Width: 0.6, Angle: 3.1}},
		{"neck", NeckPosition{X: 0, Y: -0.6, Z: 0.002, Width: 1.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)
			var got TargetPosition
			for i := 0; i < 15; i++ {
				got = s.Stabilize(tt.pos)
			}
			assertPositionsEqual(t, tt.pos, got)
			assert.Equal(t, DefaultHistorySize, s.Len(tt.pos.Kind()))
		})
	}
}

func TestStabilizer_WeightedMean(t *testing.T) {
	s := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)
	s.Stabilize(WristPosition{X: 0})
	s.Stabilize(WristPosition{X: 0})
	got := s.Stabilize(WristPosition{X: 1, Width: 0.7}).(WristPosition)

	// Weights 0.3, 0.6, 0.9 over x = 0, 0, 1.
	assert.InDelta(t, 0.9/1.8, got.X, epsilon)
	assert.Equal(t, 0.7, got.Width)
}

func TestStabilizer_RecencyWeighting(t *testing.T) {
	base := []FingerPosition{{X: 0}, {X: 0}, {X: 0}, {X: 0}}
	older := FingerPosition{X: 0.2}
	newer := FingerPosition{X: 1.0}

	a := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)
	b := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)
	for _, p := range base {
		a.Stabilize(p)
		b.Stabilize(p)
	}
	a.Stabilize(older)
	b.Stabilize(older)

	prev := a.Stabilize(older).(FingerPosition)
	next := b.Stabilize(newer).(FingerPosition)

	assert.Greater(t, next.X, prev.X)
	assert.Less(t, next.X, newer.X)
}

func TestStabilizer_KindIsolation(t *testing.T) {
	s := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)
	for i := 0; i < 5; i++ {
		s.Stabilize(FingerPosition{X: 0.9, Y: 0.9})
	}

	wrist := WristPosition{X: -0.5, Y: -0.5, Angle: 0.2}
	got := s.Stabilize(wrist)
	assert.Equal(t, wrist, got)
	assert.Equal(t, 5, s.Len(KindFinger))
	assert.Equal(t, 1, s.Len(KindWrist))

	s.Clear(KindFinger)
	assert.Equal(t, 0, s.Len(KindFinger))
	assert.Equal(t, 1, s.Len(KindWrist))

	s.Reset()
	assert.Equal(t, 0, s.Len(KindWrist))
}

func TestStabilizer_CopiesUnsmoothedFields(t *testing.T) {
	s := NewStabilizer(DefaultHistorySize, DefaultBaseWeight)
	s.Stabilize(FingerPosition{Width: 0.1, Length: 0.1, Finger: FingerRing})
	s.Stabilize(FingerPosition{Width: 0.2, Length: 0.2, Finger: FingerRing})
	got := s.Stabilize(FingerPosition{Width: 0.3, Length: 0.4, Finger: FingerPinky}).(FingerPosition)

	assert.Equal(t, 0.3, got.Width)
	assert.Equal(t, 0.4, got.Length)
	assert.Equal(t, FingerPinky, got.Finger)
}

func assertPositionsEqual(t *testing.T, want, got TargetPosition) {
	t.Helper()
	require.Equal(t, want.Kind(), got.Kind())

	switch w := want.(type) {
	case FingerPosition:
		g := got.(FingerPosition)
		assert.InDelta(t, w.X, g.X, epsilon)
		assert.InDelta(t, w.Y, g.Y, epsilon)
		assert.InDelta(t, w.Z, g.Z, epsilon)
		assert.InDelta(t, w.Angle, g.Angle, epsilon)
		assert.Equal(t, w.Width, g.Width)
		assert.Equal(t, w.Length, g.Length)
		assert.Equal(t, w.Finger, g.Finger)
	case WristPosition:
		g := got.(WristPosition)
		assert.InDelta(t, w.X, g.X, epsilon)
		assert.InDelta(t, w.Y, g.Y, epsilon)
		assert.InDelta(t, w.Z, g.Z, epsilon)
		assert.InDelta(t, w.Angle, g.Angle, epsilon)
		assert.Equal(t, w.Width, g.Width)
	case NeckPosition:
		g := got.(NeckPosition)
		assert.InDelta(t, w.X, g.X, epsilon)
		assert.InDelta(t, w.Y, g.Y, epsilon)
		assert.InDelta(t, w.Z, g.Z, epsilon)
		assert.Equal(t, w.Width, g.Width)
	default:
		t.Fatalf("unexpected position type %T", want)
	}
}
