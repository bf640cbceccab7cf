package tracking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/gesture"
)

// DefaultLostAfter is the number of consecutive empty ticks before a
// LostEvent fires.
const DefaultLostAfter = 10

// ErrInvalidState is returned for a selection naming an unknown jewelry
// type or finger.
var ErrInvalidState = errors.New("invalid state")

// Options configures a Publisher.
type Options struct {
	HistorySize int
	BaseWeight  float64
	LostAfter   int
	FrameWidth  int
	FrameHeight int
	NeckOffset  float64
	PoseWindow  int
	// Now returns event timestamps. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the defaults used by the try-on UI.
func DefaultOptions() Options {
	return Options{
		HistorySize: DefaultHistorySize,
		BaseWeight:  DefaultBaseWeight,
		LostAfter:   DefaultLostAfter,
		NeckOffset:  DefaultNeckOffset,
		PoseWindow:  gesture.DefaultPoseWindow,
	}
}

// Publisher ties extraction, stabilization and calibration together per tick
// and holds the latest anchor for renderers. It is safe for concurrent use;
// ticks are processed one at a time in call order.
type Publisher struct {
	log  logrus.FieldLogger
	opts Options

	mu         sync.RWMutex
	extractor  *Extractor
	stabilizer *Stabilizer
	calibrator *Calibrator
	poses      *gesture.Stabilizer
	state      State
	latest     TargetPosition
	tick       uint64
	emptyTicks int
	lost       bool
	pending    []Event
}

// NewPublisher creates a Publisher starting in state.
func NewPublisher(state State, opts Options, log logrus.FieldLogger) (*Publisher, error) {
	if err := validateState(state); err != nil {
		return nil, err
	}
	if opts.LostAfter <= 0 {
		opts.LostAfter = DefaultLostAfter
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	extractor := NewExtractor(opts.FrameWidth, opts.FrameHeight)
	if opts.NeckOffset > 0 {
		extractor.NeckOffset = opts.NeckOffset
	}

	return &Publisher{
		log:        log.WithField("component", "publisher"),
		opts:       opts,
		extractor:  extractor,
		stabilizer: NewStabilizer(opts.HistorySize, opts.BaseWeight),
		calibrator: NewCalibrator(),
		poses:      gesture.NewStabilizer(opts.PoseWindow),
		state:      state,
		// Nothing has been published yet, so there is nothing to lose.
		lost: true,
	}, nil
}

// Tick processes one detection result. hand is nil when no hand was
// detected. It returns the events to publish, in order.
//
// A missing or malformed hand holds the last position. After LostAfter
// consecutive such ticks a single LostEvent is returned and the held
// position is dropped. Events not yet taken with Drain come first.
func (p *Publisher) Tick(hand *detector.HandLandmarks) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tick++
	meta := Meta{Tick: p.tick, At: p.opts.Now()}
	events := p.drain()

	if hand == nil {
		return append(events, p.emptyTick(meta)...)
	}
	if err := hand.Validate(); err != nil {
		p.log.WithError(err).WithField("tick", p.tick).Debug("discarding landmark set")
		return append(events, p.emptyTick(meta)...)
	}

	raw, err := p.extractor.Extract(hand, p.state, p.calibrator.Data())
	if err != nil {
		p.log.WithError(err).WithField("tick", p.tick).Warn("extraction failed")
		return append(events, p.emptyTick(meta)...)
	}

	pos := raw
	if p.state.Stabilize {
		pos = p.stabilizer.Stabilize(raw)
	}
	p.latest = pos
	p.emptyTicks = 0
	p.lost = false

	events = append(events,
		p.handEvent(meta, hand),
		PositionEvent{Meta: meta, Kind: pos.Kind(), Jewelry: p.state.Jewelry, Position: pos},
	)

	if p.state.CalibrationMode && p.calibrator.Observe(hand) {
		events = append(events, CalibrationEvent{Meta: meta, Calibration: p.calibrator.Data()})
	}
	return events
}

func (p *Publisher) emptyTick(meta Meta) []Event {
	p.emptyTicks++
	if p.lost || p.emptyTicks < p.opts.LostAfter {
		return nil
	}

	kind := p.state.Kind()
	p.lost = true
	p.latest = nil
	p.stabilizer.Clear(kind)
	p.poses.Reset()

	p.log.WithFields(logrus.Fields{
		"kind":        kind,
		"empty_ticks": p.emptyTicks,
	}).Info("target lost")

	return []Event{LostEvent{Meta: meta, Kind: kind, EmptyTicks: p.emptyTicks}}
}

// Drain returns and clears the events raised between ticks. A selection
// change that drops a held position raises a LostEvent for the old kind,
// so renderers and caches stop showing it without waiting for a tick.
func (p *Publisher) Drain() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drain()
}

func (p *Publisher) drain() []Event {
	events := p.pending
	p.pending = nil
	return events
}

// ResetHistory clears the smoothing history of the active target, so the
// next position starts from the current hand only.
func (p *Publisher) ResetHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stabilizer.Clear(p.state.Kind())
}

func (p *Publisher) handEvent(meta Meta, hand *detector.HandLandmarks) HandEvent {
	orientation, _ := Orientation(hand)
	return HandEvent{
		Meta:        meta,
		Landmarks:   append([]detector.Point3D(nil), hand.Points...),
		Handedness:  hand.Handedness,
		Score:       hand.Score,
		Bounds:      hand.Bounds(),
		Pose:        p.poses.Observe(gesture.Classify(hand)),
		Orientation: orientation,
	}
}

// Latest returns the last published position, or nil when none is held.
func (p *Publisher) Latest() TargetPosition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// State returns the current selection.
func (p *Publisher) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Calibration returns the current calibration data.
func (p *Publisher) Calibration() CalibrationData {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calibrator.Data()
}

// Ticks returns the number of processed ticks.
func (p *Publisher) Ticks() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tick
}

// SetState replaces the selection. It takes effect on the next tick.
// Changing what is tracked clears the new target's history and drops the
// held position, so a position of the previous target is never published.
// A dropped position is reported by a LostEvent returned from Drain.
func (p *Publisher) SetState(next State) error {
	if err := validateState(next); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.apply(next)
	return nil
}

// SetFrameSize sets the frame dimensions used to correct lengths for the
// aspect ratio. Zero values mean square frames.
func (p *Publisher) SetFrameSize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extractor.FrameWidth = width
	p.extractor.FrameHeight = height
}

// SetJewelry selects a jewelry type.
func (p *Publisher) SetJewelry(j Jewelry) error {
	return p.update(func(s State) State { return s.WithJewelry(j) })
}

// SetFinger selects the finger tracked for rings.
func (p *Publisher) SetFinger(f Finger) error {
	return p.update(func(s State) State { return s.WithFinger(f) })
}

// SetStabilize turns smoothing on or off. Toggling clears the active
// target's history.
func (p *Publisher) SetStabilize(on bool) {
	_ = p.update(func(s State) State { return s.WithStabilize(on) })
}

// EnterCalibrationMode starts calibrating from every valid tick.
func (p *Publisher) EnterCalibrationMode() {
	_ = p.update(func(s State) State { return s.WithCalibrationMode(true) })
}

// ExitCalibrationMode stops calibrating. Measured data is kept.
func (p *Publisher) ExitCalibrationMode() {
	_ = p.update(func(s State) State { return s.WithCalibrationMode(false) })
}

// ResetCalibration restores the reference width table.
func (p *Publisher) ResetCalibration() CalibrationData {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calibrator.Reset()
	p.log.Info("calibration reset")
	return p.calibrator.Data()
}

func (p *Publisher) update(fn func(State) State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := fn(p.state)
	if err := validateState(next); err != nil {
		return err
	}
	p.apply(next)
	return nil
}

// apply must be called with mu held.
func (p *Publisher) apply(next State) {
	if p.state.targetChanged(next) {
		if p.latest != nil {
			kind := p.latest.Kind()
			p.pending = append(p.pending, LostEvent{
				Meta:       Meta{Tick: p.tick, At: p.opts.Now()},
				Kind:       kind,
				EmptyTicks: p.emptyTicks,
			})
			p.stabilizer.Clear(kind)
			p.log.WithField("kind", kind).Info("target switched, held position dropped")
		}
		p.stabilizer.Clear(next.Kind())
		p.latest = nil
		p.emptyTicks = 0
		p.lost = true
	}
	if p.state.Stabilize != next.Stabilize {
		p.stabilizer.Clear(next.Kind())
	}
	if p.state != next {
		p.log.WithFields(logrus.Fields{
			"jewelry":     next.Jewelry,
			"finger":      next.Finger,
			"calibration": next.CalibrationMode,
			"stabilize":   next.Stabilize,
		}).Info("state changed")
	}
	p.state = next
}

func validateState(s State) error {
	if _, err := ParseJewelry(string(s.Jewelry)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if _, err := ParseFinger(string(s.Finger)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
