package tracking

import "fmt"

// Stabilizer defaults.
const (
	// DefaultHistorySize is the sliding window length per target kind.
	DefaultHistorySize = 10
	// DefaultBaseWeight scales the recency weights. Only the ratio between
	// weights matters, so it does not change the averages.
	DefaultBaseWeight = 0.3
	// minSmoothingSamples is the history length below which raw samples pass through.
	minSmoothingSamples = 3
)

// Stabilizer smooths positions with a recency-weighted moving average.
// Each target kind has its own history so signals never mix.
type Stabilizer struct {
	baseWeight float64
	finger     *History[FingerPosition]
	wrist      *History[WristPosition]
	neck       *History[NeckPosition]
}

// NewStabilizer creates a Stabilizer with the given window size and base weight.
func NewStabilizer(historySize int, baseWeight float64) *Stabilizer {
	if baseWeight <= 0 {
		baseWeight = DefaultBaseWeight
	}
	return &Stabilizer{
		baseWeight: baseWeight,
		finger:     NewHistory[FingerPosition](historySize),
		wrist:      NewHistory[WristPosition](historySize),
		neck:       NewHistory[NeckPosition](historySize),
	}
}

// Stabilize records raw in the history for its kind and returns the smoothed
// position. With fewer than three samples the raw position is returned.
//
// x, y, z are averaged for every kind and angle for fingers and wrists.
// Width, length and finger are taken from the newest sample.
func (s *Stabilizer) Stabilize(raw TargetPosition) TargetPosition {
	switch p := raw.(type) {
	case FingerPosition:
		s.finger.Push(p)
		if s.finger.Len() < minSmoothingSamples {
			return p
		}
		h := s.finger.entries
		p.X = weightedMean(h, s.baseWeight, func(v FingerPosition) float64 { return v.X })
		p.Y = weightedMean(h, s.baseWeight, func(v FingerPosition) float64 { return v.Y })
		p.Z = weightedMean(h, s.baseWeight, func(v FingerPosition) float64 { return v.Z })
		p.Angle = weightedMean(h, s.baseWeight, func(v FingerPosition) float64 { return v.Angle })
		return p

	case WristPosition:
		s.wrist.Push(p)
		if s.wrist.Len() < minSmoothingSamples {
			return p
		}
		h := s.wrist.entries
		p.X = weightedMean(h, s.baseWeight, func(v WristPosition) float64 { return v.X })
		p.Y = weightedMean(h, s.baseWeight, func(v WristPosition) float64 { return v.Y })
		p.Z = weightedMean(h, s.baseWeight, func(v WristPosition) float64 { return v.Z })
		p.Angle = weightedMean(h, s.baseWeight, func(v WristPosition) float64 { return v.Angle })
		return p

	case NeckPosition:
		s.neck.Push(p)
		if s.neck.Len() < minSmoothingSamples {
			return p
		}
		h := s.neck.entries
		p.X = weightedMean(h, s.baseWeight, func(v NeckPosition) float64 { return v.X })
		p.Y = weightedMean(h, s.baseWeight, func(v NeckPosition) float64 { return v.Y })
		p.Z = weightedMean(h, s.baseWeight, func(v NeckPosition) float64 { return v.Z })
		return p

	default:
		panic(fmt.Sprintf("tracking: unhandled position type %T", raw))
	}
}

// Len returns the history length for kind.
func (s *Stabilizer) Len(kind TargetKind) int {
	switch kind {
	case KindFinger:
		return s.finger.Len()
	case KindWrist:
		return s.wrist.Len()
	case KindNeck:
		return s.neck.Len()
	default:
		return 0
	}
}

// Clear drops the history for kind.
func (s *Stabilizer) Clear(kind TargetKind) {
	switch kind {
	case KindFinger:
		s.finger.Clear()
	case KindWrist:
		s.wrist.Clear()
	case KindNeck:
		s.neck.Clear()
	}
}

// Reset drops every history.
func (s *Stabilizer) Reset() {
	s.finger.Clear()
	s.wrist.Clear()
	s.neck.Clear()
}

// weightedMean computes sum(field_i * w_i) / sum(w_i) with w_i = base*(i+1),
// i = 0 being the oldest entry.
func weightedMean[T any](entries []T, base float64, field func(T) float64) float64 {
	var sum, total float64
	for i, e := range entries {
		w := base * float64(i+1)
		sum += field(e) * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}
