// Package detector provides hand landmark types and detector implementations.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrMalformedLandmarks is returned when a landmark set does not have the
// 21-point hand topology or carries non-finite coordinates.
var ErrMalformedLandmarks = errors.New("malformed landmark set")

// Point3D is a landmark in frame-normalized coordinates: X and Y in [0,1]
// relative to frame width and height, Z a relative depth from the detector.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one hand detection. A usable set has exactly NumLandmarks
// points; call Validate before reading Points by index.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Validate reports whether h has the full hand topology.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil hand", ErrMalformedLandmarks)
	}
	if len(h.Points) != NumLandmarks {
		return fmt.Errorf("%w: got %d points, want %d", ErrMalformedLandmarks, len(h.Points), NumLandmarks)
	}
	for i, p := range h.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("%w: point %d is not finite", ErrMalformedLandmarks, i)
		}
	}
	return nil
}

// Clone returns a deep copy of h.
func (h *HandLandmarks) Clone() HandLandmarks {
	c := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	c.Points = append([]Point3D(nil), h.Points...)
	return c
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Distance2D is the distance between a and b in the image plane, ignoring depth.
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// BoundingBox is an axis-aligned box in frame-normalized coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds returns the image-plane bounding box of all points.
func (h *HandLandmarks) Bounds() BoundingBox {
	if h == nil || len(h.Points) == 0 {
		return BoundingBox{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range h.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
