package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/gesture"
)

// EventType tags an Event.
type EventType string

const (
	EventPosition    EventType = "position"
	EventLost        EventType = "lost"
	EventCalibration EventType = "calibration"
	EventHand        EventType = "hand"
)

// Event is published by the Publisher. The set of implementations is closed.
type Event interface {
	Type() EventType
	Header() Meta
}

// Meta is common to every event. Tick increases by one per processed frame,
// so events order strictly by Tick.
type Meta struct {
	Tick uint64    `json:"tick"`
	At   time.Time `json:"at"`
}

// PositionEvent carries the stabilized anchor for the active target.
type PositionEvent struct {
	Meta
	Kind     TargetKind     `json:"kind"`
	Jewelry  Jewelry        `json:"jewelry"`
	Position TargetPosition `json:"position"`
}

// LostEvent fires once when the target has been absent for LostAfter ticks.
type LostEvent struct {
	Meta
	Kind       TargetKind `json:"kind"`
	EmptyTicks int        `json:"emptyTicks"`
}

// CalibrationEvent carries calibration data measured in calibration mode.
type CalibrationEvent struct {
	Meta
	Calibration CalibrationData `json:"calibration"`
}

// HandEvent describes the raw detection behind a tick.
type HandEvent struct {
	Meta
	Landmarks   []detector.Point3D   `json:"landmarks"`
	Handedness  string               `json:"handedness"`
	Score       float64              `json:"score"`
	Bounds      detector.BoundingBox `json:"bounds"`
	Pose        gesture.Pose         `json:"pose"`
	Orientation PalmOrientation      `json:"orientation"`
}

func (e PositionEvent) Type() EventType    { return EventPosition }
func (e LostEvent) Type() EventType        { return EventLost }
func (e CalibrationEvent) Type() EventType { return EventCalibration }
func (e HandEvent) Type() EventType        { return EventHand }

// Header returns m. It is promoted to every event type.
func (m Meta) Header() Meta { return m }

// Sink receives published events in tick order.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Fanout delivers each event to every sink in order. All sinks are tried;
// the errors are joined.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collector is a Sink that keeps every event. Useful in tests and for
// draining a run.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Sink.
func (c *Collector) Publish(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// OfType returns the collected events of type t.
func (c *Collector) OfType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}
