// Package sizing converts finger widths measured in frame units into
// millimetres and US ring sizes.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/tryon/internal/tracking"
)

// ErrInvalidReference is returned when a reference measurement cannot
// produce a scale.
var ErrInvalidReference = errors.New("invalid reference measurement")

// Reference is an object of known width held next to the hand.
type Reference struct {
	Name    string  `json:"name"`
	WidthMM float64 `json:"widthMM"`
}

var (
	// CreditCard is an ISO/IEC 7810 ID-1 card.
	CreditCard = Reference{Name: "credit_card", WidthMM: 85.6}
	// Coin is a US quarter.
	Coin = Reference{Name: "coin", WidthMM: 24.26}
)

// References lists the built-in reference objects.
var References = []Reference{CreditCard, Coin}

// LookupReference returns the built-in reference with the given name.
func LookupReference(name string) (Reference, bool) {
	for _, r := range References {
		if r.Name == name {
			return r, true
		}
	}
	return Reference{}, false
}

// Position is where along the finger a width was measured.
type Position string

const (
	PositionBase   Position = "base"
	PositionMiddle Position = "middle"
	PositionTip    Position = "tip"
)

// Ring size constants. The diameter is the measured width corrected for the
// oval finger cross-section.
const (
	ovalFactor     = 1.13
	sizeOffsetMM   = 11.53
	mmPerSizeStep  = 1 / 0.8
	minRingSize    = 3.0
	maxRingSize    = 15.0
	middleAdjust   = 1.08
	tipAdjust      = 1.15
	halfSizeFactor = 2.0
)

// Scale converts frame-width units to millimetres.
type Scale struct {
	MMPerUnit float64 `json:"mmPerUnit"`
	Method    string  `json:"method"`
}

// FromReference derives a scale from a reference object whose width was
// measured as measured frame-width units.
func FromReference(ref Reference, measured float64) (Scale, error) {
	if !positive(ref.WidthMM) || !positive(measured) {
		return Scale{}, fmt.Errorf("%w: %s width %.4f", ErrInvalidReference, ref.Name, measured)
	}
	return Scale{MMPerUnit: ref.WidthMM / measured, Method: ref.Name}, nil
}

// FromKnownRing derives a scale from a finger whose ring size is known and
// whose width was measured as measured frame-width units.
func FromKnownRing(usSize, measured float64) (Scale, error) {
	if !(usSize >= minRingSize && usSize <= maxRingSize) || !positive(measured) {
		return Scale{}, fmt.Errorf("%w: ring size %.1f width %.4f", ErrInvalidReference, usSize, measured)
	}
	diameter := (usSize-1)*mmPerSizeStep + sizeOffsetMM
	return Scale{MMPerUnit: diameter / ovalFactor / measured, Method: "known_ring"}, nil
}

// positive reports whether v is a finite number above zero.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// ToMM converts a width in frame-width units to millimetres.
func (s Scale) ToMM(units float64) float64 {
	return units * s.MMPerUnit
}

// DiameterMM returns the inner ring diameter for a finger width in mm,
// adjusted for where the width was measured.
func DiameterMM(widthMM float64, pos Position) float64 {
	d := widthMM * ovalFactor
	switch pos {
	case PositionMiddle:
		d *= middleAdjust
	case PositionTip:
		d *= tipAdjust
	}
	return d
}

// USRingSize returns the US ring size for a finger width in mm, rounded to
// the nearest half size within [3, 15]. Non-positive widths return 0.
func USRingSize(widthMM float64, pos Position) float64 {
	if widthMM <= 0 {
		return 0
	}
	size := (DiameterMM(widthMM, pos)-sizeOffsetMM)/mmPerSizeStep + 1
	size = math.Round(size*halfSizeFactor) / halfSizeFactor
	return math.Max(minRingSize, math.Min(maxRingSize, size))
}

// Estimate is a ring size estimate for one finger.
type Estimate struct {
	Finger     tracking.Finger `json:"finger"`
	WidthMM    float64         `json:"widthMM"`
	DiameterMM float64         `json:"diameterMM"`
	USSize     float64         `json:"usSize"`
	Calibrated bool            `json:"calibrated"`
}

// EstimateFinger sizes finger from the calibration widths and scale.
func EstimateFinger(calib tracking.CalibrationData, f tracking.Finger, scale Scale) Estimate {
	width := scale.ToMM(calib.FingerWidth(f))
	return Estimate{
		Finger:     f,
		WidthMM:    width,
		DiameterMM: DiameterMM(width, PositionBase),
		USSize:     USRingSize(width, PositionBase),
		Calibrated: calib.IsCalibrated,
	}
}
