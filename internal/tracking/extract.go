package tracking

import (
	"fmt"
	"math"

	"github.com/ayusman/tryon/internal/detector"
)

const (
	// DefaultNeckOffset moves the neck anchor below the wrist, in device units.
	DefaultNeckOffset = 0.2
	// depthScale maps detector depth to device depth.
	depthScale = 100.0
)

// Extractor converts one landmark set into a raw TargetPosition for the
// selected jewelry. It holds no per-tick state.
type Extractor struct {
	// FrameWidth and FrameHeight are the source frame size in pixels. They
	// are only used to express lengths in frame-width units; when unset the
	// frame is treated as square.
	FrameWidth  int
	FrameHeight int
	// NeckOffset is the downward offset of the neck anchor from the wrist.
	NeckOffset float64
}

// NewExtractor creates an Extractor for frames of the given size.
func NewExtractor(frameWidth, frameHeight int) *Extractor {
	return &Extractor{
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
		NeckOffset:  DefaultNeckOffset,
	}
}

// Extract computes the raw position for state's active target. Only that
// path is evaluated. A malformed set returns ErrMalformedLandmarks.
func (e *Extractor) Extract(hand *detector.HandLandmarks, state State, calib CalibrationData) (TargetPosition, error) {
	if err := hand.Validate(); err != nil {
		return nil, err
	}

	switch state.Jewelry {
	case JewelryRing:
		return e.finger(hand.Points, state.Finger, calib), nil
	case JewelryBracelet:
		return e.wrist(hand.Points, calib), nil
	case JewelryNecklace:
		return e.neck(hand.Points, calib), nil
	default:
		return nil, fmt.Errorf("extract: unknown jewelry type %q", string(state.Jewelry))
	}
}

func (e *Extractor) finger(pts []detector.Point3D, f Finger, calib CalibrationData) FingerPosition {
	tip := pts[f.TipIndex()]
	base := pts[f.BaseIndex()]
	mid := pts[f.MidIndex()]

	width := defaultFingerWidths[f]
	if calib.IsCalibrated {
		width = calib.FingerWidth(f)
	}

	x, y, z := toDevice(tip)
	return FingerPosition{
		X:      x,
		Y:      y,
		Z:      z,
		Width:  width,
		Length: e.planarLength(tip, base),
		Angle:  math.Atan2(tip.Y-mid.Y, tip.X-mid.X),
		Finger: f,
	}
}

func (e *Extractor) wrist(pts []detector.Point3D, calib CalibrationData) WristPosition {
	thumb := pts[detector.ThumbCMC]
	pinky := pts[detector.PinkyMCP]

	x, y, z := toDevice(pts[detector.Wrist])
	return WristPosition{
		X:     x,
		Y:     y,
		Z:     z,
		Width: wristWidth(calib),
		Angle: math.Atan2(pinky.Y-thumb.Y, pinky.X-thumb.X),
	}
}

func (e *Extractor) neck(pts []detector.Point3D, calib CalibrationData) NeckPosition {
	x, y, z := toDevice(pts[detector.Wrist])
	return NeckPosition{
		X:     x,
		Y:     y - e.NeckOffset,
		Z:     z,
		Width: wristWidth(calib) * NeckWidthFactor,
	}
}

// planarLength is the image-plane distance between a and b in units of
// frame width.
func (e *Extractor) planarLength(a, b detector.Point3D) float64 {
	aspect := 1.0
	if e.FrameWidth > 0 && e.FrameHeight > 0 {
		aspect = float64(e.FrameHeight) / float64(e.FrameWidth)
	}
	return math.Hypot(a.X-b.X, (a.Y-b.Y)*aspect)
}

func wristWidth(calib CalibrationData) float64 {
	if calib.IsCalibrated {
		return calib.WristWidth
	}
	return DefaultWristWidth
}

// toDevice maps frame coordinates to device space: x and y in [-1,1] with
// y pointing up.
func toDevice(p detector.Point3D) (x, y, z float64) {
	return p.X*2 - 1, -(p.Y*2 - 1), p.Z / depthScale
}
