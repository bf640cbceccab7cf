package tracking

import (
	"crypto/rand"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/oklog/ulid/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the wire form of an Event. ID is a ULID derived from the event
// time, so ids sort in publish order.
type Envelope struct {
	ID   string              `json:"id"`
	Type EventType           `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEventID returns a monotonic ULID for e.
func NewEventID(e Event) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(e.Header().At), entropy)
	if err != nil {
		return "", fmt.Errorf("event id: %w", err)
	}
	return id.String(), nil
}

// MarshalEvent encodes e in an Envelope.
func MarshalEvent(e Event) ([]byte, error) {
	id, err := NewEventID(e)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{ID: id, Type: e.Type(), Data: data})
}

// UnmarshalEvent decodes an Envelope produced by MarshalEvent.
func UnmarshalEvent(b []byte) (string, Event, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch env.Type {
	case EventPosition:
		e, err = unmarshalPosition(env.Data)
	case EventLost:
		var v LostEvent
		err = json.Unmarshal(env.Data, &v)
		e = v
	case EventCalibration:
		var v CalibrationEvent
		err = json.Unmarshal(env.Data, &v)
		e = v
	case EventHand:
		var v HandEvent
		err = json.Unmarshal(env.Data, &v)
		e = v
	default:
		return "", nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return "", nil, fmt.Errorf("unmarshal %s event: %w", env.Type, err)
	}
	return env.ID, e, nil
}

func unmarshalPosition(data []byte) (Event, error) {
	var raw struct {
		Meta
		Kind     TargetKind          `json:"kind"`
		Jewelry  Jewelry             `json:"jewelry"`
		Position jsoniter.RawMessage `json:"position"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	pos, err := UnmarshalPosition(raw.Kind, raw.Position)
	if err != nil {
		return nil, err
	}
	return PositionEvent{Meta: raw.Meta, Kind: raw.Kind, Jewelry: raw.Jewelry, Position: pos}, nil
}

// UnmarshalPosition decodes a TargetPosition of the given kind.
func UnmarshalPosition(kind TargetKind, data []byte) (TargetPosition, error) {
	switch kind {
	case KindFinger:
		var p FingerPosition
		err := json.Unmarshal(data, &p)
		return p, err
	case KindWrist:
		var p WristPosition
		err := json.Unmarshal(data, &p)
		return p, err
	case KindNeck:
		var p NeckPosition
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown target kind %q", kind)
	}
}
