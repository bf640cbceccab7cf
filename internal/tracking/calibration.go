package tracking

import (
	"github.com/ayusman/tryon/internal/detector"
)

// Reference widths used until the hand is calibrated, in device units.
// They are the 25/20/20/20/15 and 60 "percent" values of the try-on UI.
const (
	DefaultWristWidth = 0.60
	// NeckWidthFactor scales wrist width to a neck width. It is a heuristic:
	// the hand model has no neck landmark.
	NeckWidthFactor = 3.0
	// fingerWidthRatio treats finger width as a quarter of base-to-tip length.
	fingerWidthRatio = 4.0
)

var defaultFingerWidths = map[Finger]float64{
	FingerThumb:  0.25,
	FingerIndex:  0.20,
	FingerMiddle: 0.20,
	FingerRing:   0.20,
	FingerPinky:  0.15,
}

// CalibrationData holds the size estimates used to scale jewelry.
type CalibrationData struct {
	FingerWidths      map[Finger]float64 `json:"fingerWidths"`
	WristWidth        float64            `json:"wristWidth"`
	NeckCircumference float64            `json:"neckCircumference"`
	Scale             float64            `json:"scale"`
	IsCalibrated      bool               `json:"isCalibrated"`
}

// DefaultCalibration returns the reference table with IsCalibrated false.
func DefaultCalibration() CalibrationData {
	widths := make(map[Finger]float64, len(defaultFingerWidths))
	for f, w := range defaultFingerWidths {
		widths[f] = w
	}
	return CalibrationData{
		FingerWidths:      widths,
		WristWidth:        DefaultWristWidth,
		NeckCircumference: DefaultWristWidth * NeckWidthFactor,
		Scale:             1,
	}
}

// Clone returns a deep copy of c.
func (c CalibrationData) Clone() CalibrationData {
	widths := make(map[Finger]float64, len(c.FingerWidths))
	for f, w := range c.FingerWidths {
		widths[f] = w
	}
	c.FingerWidths = widths
	return c
}

// FingerWidth returns the width for f, falling back to the reference table.
func (c CalibrationData) FingerWidth(f Finger) float64 {
	if w, ok := c.FingerWidths[f]; ok {
		return w
	}
	return defaultFingerWidths[f]
}

// NeckWidth returns the neck width estimate derived from the wrist width.
func (c CalibrationData) NeckWidth() float64 {
	return c.WristWidth * NeckWidthFactor
}

// Calibrate derives CalibrationData from a reference pose: the hand held
// flat with fingers spread. It is a pure function of hand.
//
// Finger width is a quarter of the 2D base-to-tip distance, wrist width the
// distance between thumb CMC and pinky MCP, and the neck estimate three wrist
// widths. None of these are caliper measurements.
func Calibrate(hand *detector.HandLandmarks) (CalibrationData, error) {
	if err := hand.Validate(); err != nil {
		return CalibrationData{}, err
	}

	pts := hand.Points
	widths := make(map[Finger]float64, len(Fingers))
	for _, f := range Fingers {
		widths[f] = detector.Distance2D(pts[f.BaseIndex()], pts[f.TipIndex()]) / fingerWidthRatio
	}

	wrist := detector.Distance2D(pts[detector.PinkyMCP], pts[detector.ThumbCMC])

	return CalibrationData{
		FingerWidths:      widths,
		WristWidth:        wrist,
		NeckCircumference: wrist * NeckWidthFactor,
		Scale:             1,
		IsCalibrated:      true,
	}, nil
}

// Calibrator holds the session calibration. It is not safe for concurrent
// use; the Publisher serializes access.
type Calibrator struct {
	data CalibrationData
}

// NewCalibrator returns a Calibrator holding the reference table.
func NewCalibrator() *Calibrator {
	return &Calibrator{data: DefaultCalibration()}
}

// Observe calibrates from hand. An invalid hand leaves the current data
// untouched and reports false.
func (c *Calibrator) Observe(hand *detector.HandLandmarks) bool {
	data, err := Calibrate(hand)
	if err != nil {
		return false
	}
	c.data = data
	return true
}

// Data returns a copy of the current calibration.
func (c *Calibrator) Data() CalibrationData {
	return c.data.Clone()
}

// Reset restores the reference table.
func (c *Calibrator) Reset() {
	c.data = DefaultCalibration()
}
