package tracking

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/gesture"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestPublisher(t *testing.T, opts Options) *Publisher {
	t.Helper()
	p, err := NewPublisher(DefaultState(), opts, testLogger())
	require.NoError(t, err)
	return p
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type()
	}
	return out
}

func positionOf(t *testing.T, events []Event) TargetPosition {
	t.Helper()
	for _, e := range events {
		if pe, ok := e.(PositionEvent); ok {
			return pe.Position
		}
	}
	t.Fatalf("no position event in %v", eventTypes(events))
	return nil
}

func TestNewPublisher_InvalidState(t *testing.T) {
	_, err := NewPublisher(State{Jewelry: "earring", Finger: FingerRing}, DefaultOptions(), testLogger())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPublisher_TickPublishesPosition(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := detector.OpenPalmLandmarks()

	events := p.Tick(&hand)
	assert.Equal(t, []EventType{EventHand, EventPosition}, eventTypes(events))

	pos := positionOf(t, events)
	assert.Equal(t, KindFinger, pos.Kind())
	assert.Equal(t, pos, p.Latest())
	assert.Equal(t, uint64(1), events[0].Header().Tick)

	he := events[0].(HandEvent)
	assert.Len(t, he.Landmarks, detector.NumLandmarks)
	assert.Equal(t, gesture.PoseOpenPalm, he.Pose)
	assert.Equal(t, "Right", he.Handedness)
}

func TestPublisher_TicksAreOrdered(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := detector.OpenPalmLandmarks()

	var last uint64
	for i := 0; i < 5; i++ {
		for _, e := range p.Tick(&hand) {
			assert.Greater(t, e.Header().Tick, last)
		}
		last = p.Ticks()
	}
	assert.Equal(t, uint64(5), p.Ticks())
}

func TestPublisher_HoldLast(t *testing.T) {
	opts := DefaultOptions()
	opts.LostAfter = 3
	p := newTestPublisher(t, opts)
	hand := detector.OpenPalmLandmarks()

	held := positionOf(t, p.Tick(&hand))

	// A single dropout keeps the last position.
	assert.Empty(t, p.Tick(nil))
	assert.Equal(t, held, p.Latest())

	assert.Empty(t, p.Tick(nil))
	assert.Equal(t, held, p.Latest())

	// The third empty tick fires lost exactly once.
	events := p.Tick(nil)
	require.Len(t, events, 1)
	lost, ok := events[0].(LostEvent)
	require.True(t, ok)
	assert.Equal(t, KindFinger, lost.Kind)
	assert.Equal(t, 3, lost.EmptyTicks)
	assert.Nil(t, p.Latest())

	for i := 0; i < 10; i++ {
		assert.Empty(t, p.Tick(nil))
	}

	// Redetection re-arms the lost latch.
	positionOf(t, p.Tick(&hand))
	for i := 0; i < 2; i++ {
		assert.Empty(t, p.Tick(nil))
	}
	assert.Equal(t, []EventType{EventLost}, eventTypes(p.Tick(nil)))
}

func TestPublisher_NoLostBeforeFirstDetection(t *testing.T) {
	opts := DefaultOptions()
	opts.LostAfter = 2
	p := newTestPublisher(t, opts)

	for i := 0; i < 10; i++ {
		assert.Empty(t, p.Tick(nil))
	}
}

func TestPublisher_MalformedSetIsDiscarded(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	p.EnterCalibrationMode()

	hand := detector.OpenPalmLandmarks()
	held := positionOf(t, p.Tick(&hand))
	calib := p.Calibration()
	histLen := p.stabilizer.Len(KindFinger)

	for _, n := range []int{0, 1, 20, 22, 42} {
		bad := detector.HandLandmarks{Points: make([]detector.Point3D, n)}
		assert.Empty(t, p.Tick(&bad), "points=%d", n)
	}

	assert.Equal(t, held, p.Latest())
	assert.Equal(t, calib, p.Calibration())
	assert.Equal(t, histLen, p.stabilizer.Len(KindFinger))
}

func TestPublisher_ConvergesOnStillHand(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := ringScenario()

	raw, err := NewExtractor(0, 0).Extract(&hand, DefaultState(), DefaultCalibration())
	require.NoError(t, err)

	var got TargetPosition
	for i := 0; i < 5; i++ {
		got = positionOf(t, p.Tick(&hand))
	}
	assertPositionsEqual(t, raw, got)
}

func TestPublisher_StabilizeDisabled(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	p.SetStabilize(false)

	a := detector.OpenPalmLandmarks()
	b := detector.Translate(a, 0.1, 0)
	p.Tick(&a)
	p.Tick(&a)
	p.Tick(&a)

	raw, err := NewExtractor(0, 0).Extract(&b, p.State(), p.Calibration())
	require.NoError(t, err)
	assertPositionsEqual(t, raw, positionOf(t, p.Tick(&b)))
}

func TestPublisher_JewelrySwitchIsolatesKinds(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := detector.OpenPalmLandmarks()
	for i := 0; i < 5; i++ {
		p.Tick(&hand)
	}
	require.NotNil(t, p.Latest())

	require.NoError(t, p.SetJewelry(JewelryBracelet))
	assert.Nil(t, p.Latest(), "stale finger position must not be held")

	// The dropped finger position is reported once, before any tick.
	drained := p.Drain()
	require.Len(t, drained, 1)
	lost, ok := drained[0].(LostEvent)
	require.True(t, ok)
	assert.Equal(t, KindFinger, lost.Kind)
	assert.Equal(t, uint64(5), lost.Tick)
	assert.Empty(t, p.Drain())
	assert.Empty(t, p.Tick(nil))

	moved := detector.Translate(hand, 0.2, 0.1)
	pos := positionOf(t, p.Tick(&moved))
	require.Equal(t, KindWrist, pos.Kind())

	raw, err := NewExtractor(0, 0).Extract(&moved, p.State(), p.Calibration())
	require.NoError(t, err)
	assertPositionsEqual(t, raw, pos)

	// Switching back starts the finger history over.
	require.NoError(t, p.SetJewelry(JewelryRing))
	assert.Equal(t, 0, p.stabilizer.Len(KindFinger))
}

func TestPublisher_SwitchLostComesWithNextTick(t *testing.T) {
	p := newTestPublisher(t, Options{LostAfter: 3})
	hand := detector.OpenPalmLandmarks()
	p.Tick(&hand)

	require.NoError(t, p.SetFinger(FingerIndex))

	events := p.Tick(nil)
	require.Equal(t, []EventType{EventLost}, eventTypes(events))
	assert.Equal(t, KindFinger, events[0].(LostEvent).Kind)

	// The absence that follows was already reported.
	for i := 0; i < 5; i++ {
		assert.Empty(t, p.Tick(nil))
	}
}

func TestPublisher_SwitchWithoutHeldPosition(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())

	require.NoError(t, p.SetJewelry(JewelryNecklace))
	assert.Empty(t, p.Drain())

	// Smoothing and calibration toggles never drop the held position.
	hand := detector.OpenPalmLandmarks()
	p.Tick(&hand)
	p.SetStabilize(false)
	p.EnterCalibrationMode()
	assert.Empty(t, p.Drain())
	assert.NotNil(t, p.Latest())
}

func TestPublisher_HistoryResets(t *testing.T) {
	a := detector.OpenPalmLandmarks()
	b := detector.Translate(a, 0.1, 0.05)

	tests := []struct {
		name  string
		reset func(p *Publisher)
	}{
		{name: "stabilize toggled", reset: func(p *Publisher) {
			p.SetStabilize(false)
			p.SetStabilize(true)
		}},
		{name: "explicit reset", reset: func(p *Publisher) { p.ResetHistory() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPublisher(t, DefaultOptions())
			for i := 0; i < 5; i++ {
				p.Tick(&a)
			}
			tt.reset(p)
			assert.Equal(t, 0, p.stabilizer.Len(KindFinger))

			raw, err := NewExtractor(0, 0).Extract(&b, p.State(), p.Calibration())
			require.NoError(t, err)
			assertPositionsEqual(t, raw, positionOf(t, p.Tick(&b)))
		})
	}
}

func TestPublisher_FingerSwitchClearsHistory(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := detector.OpenPalmLandmarks()
	for i := 0; i < 4; i++ {
		p.Tick(&hand)
	}

	require.NoError(t, p.SetFinger(FingerIndex))
	assert.Equal(t, 0, p.stabilizer.Len(KindFinger))

	pos := positionOf(t, p.Tick(&hand)).(FingerPosition)
	assert.Equal(t, FingerIndex, pos.Finger)
}

func TestPublisher_SetInvalid(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())

	assert.ErrorIs(t, p.SetJewelry("earring"), ErrInvalidState)
	assert.ErrorIs(t, p.SetFinger("toe"), ErrInvalidState)
	assert.ErrorIs(t, p.SetState(State{}), ErrInvalidState)
	assert.Equal(t, DefaultState(), p.State())
}

func TestPublisher_Calibration(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := detector.OpenPalmLandmarks()

	// Outside calibration mode nothing is measured.
	assert.NotContains(t, eventTypes(p.Tick(&hand)), EventCalibration)
	assert.False(t, p.Calibration().IsCalibrated)

	p.EnterCalibrationMode()
	assert.Empty(t, p.Tick(nil), "calibration without a hand is a no-op")
	assert.False(t, p.Calibration().IsCalibrated)

	events := p.Tick(&hand)
	assert.Equal(t, []EventType{EventHand, EventPosition, EventCalibration}, eventTypes(events))

	want, err := Calibrate(&hand)
	require.NoError(t, err)
	assert.Equal(t, want, events[2].(CalibrationEvent).Calibration)

	// Calibration persists after leaving the mode.
	p.ExitCalibrationMode()
	p.Tick(&hand)
	assert.Equal(t, want, p.Calibration())

	pos := p.Latest().(FingerPosition)
	assert.InDelta(t, want.FingerWidths[FingerRing], pos.Width, epsilon)

	reset := p.ResetCalibration()
	assert.False(t, reset.IsCalibrated)
	assert.Equal(t, DefaultCalibration(), p.Calibration())
}

func TestPublisher_ConcurrentReaders(t *testing.T) {
	p := newTestPublisher(t, DefaultOptions())
	hand := detector.OpenPalmLandmarks()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = p.Latest()
					_ = p.State()
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		p.Tick(&hand)
		if i%10 == 0 {
			p.Tick(nil)
		}
	}
	close(stop)
	wg.Wait()
}

func TestPublisher_UsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	opts := DefaultOptions()
	opts.Now = func() time.Time { return at }
	p := newTestPublisher(t, opts)

	hand := detector.OpenPalmLandmarks()
	for _, e := range p.Tick(&hand) {
		assert.Equal(t, at, e.Header().At)
	}
}

func TestFanout(t *testing.T) {
	var a, b Collector
	failing := SinkFunc(func(context.Context, Event) error { return errors.New("boom") })
	f := Fanout{&a, failing, nil, &b}

	e := LostEvent{Meta: Meta{Tick: 1}, Kind: KindWrist}
	err := f.Publish(context.Background(), e)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []Event{e}, a.Events())
	assert.Equal(t, []Event{e}, b.Events())
	assert.Len(t, b.OfType(EventLost), 1)
	assert.Empty(t, b.OfType(EventPosition))
}
