// Package tracking turns a stream of hand landmark sets into stabilized,
// calibrated jewelry anchors and publishes them as typed events.
package tracking

import (
	"fmt"

	"github.com/ayusman/tryon/internal/detector"
)

// Jewelry is the selected jewelry type. It determines which anatomical
// target is tracked.
type Jewelry string

const (
	// JewelryRing tracks a finger.
	JewelryRing Jewelry = "ring"
	// JewelryBracelet tracks the wrist.
	JewelryBracelet Jewelry = "bracelet"
	// JewelryNecklace tracks an approximated neck anchor.
	JewelryNecklace Jewelry = "necklace"
)

// Jewelries lists every jewelry type in menu order.
var Jewelries = []Jewelry{JewelryRing, JewelryBracelet, JewelryNecklace}

// ParseJewelry converts a string to a Jewelry.
func ParseJewelry(s string) (Jewelry, error) {
	switch j := Jewelry(s); j {
	case JewelryRing, JewelryBracelet, JewelryNecklace:
		return j, nil
	default:
		return "", fmt.Errorf("unknown jewelry type %q", s)
	}
}

// TargetKind returns the anatomical target kind for j.
func (j Jewelry) TargetKind() TargetKind {
	switch j {
	case JewelryRing:
		return KindFinger
	case JewelryBracelet:
		return KindWrist
	case JewelryNecklace:
		return KindNeck
	default:
		panic(fmt.Sprintf("tracking: unhandled jewelry type %q", string(j)))
	}
}

// TargetKind identifies the anatomical region being tracked.
type TargetKind string

const (
	KindFinger TargetKind = "finger"
	KindWrist  TargetKind = "wrist"
	KindNeck   TargetKind = "neck"
)

// Finger identifies one finger of the tracked hand.
type Finger string

const (
	FingerThumb  Finger = "thumb"
	FingerIndex  Finger = "index"
	FingerMiddle Finger = "middle"
	FingerRing   Finger = "ring"
	FingerPinky  Finger = "pinky"
)

// Fingers lists every finger from thumb to pinky.
var Fingers = []Finger{FingerThumb, FingerIndex, FingerMiddle, FingerRing, FingerPinky}

// ParseFinger converts a string to a Finger.
func ParseFinger(s string) (Finger, error) {
	switch f := Finger(s); f {
	case FingerThumb, FingerIndex, FingerMiddle, FingerRing, FingerPinky:
		return f, nil
	default:
		return "", fmt.Errorf("unknown finger %q", s)
	}
}

// TipIndex returns the landmark index of the fingertip.
func (f Finger) TipIndex() int {
	switch f {
	case FingerThumb:
		return detector.ThumbTip
	case FingerIndex:
		return detector.IndexTip
	case FingerMiddle:
		return detector.MiddleTip
	case FingerRing:
		return detector.RingTip
	case FingerPinky:
		return detector.PinkyTip
	default:
		panic(fmt.Sprintf("tracking: unhandled finger %q", string(f)))
	}
}

// BaseIndex returns the landmark index of the finger base.
func (f Finger) BaseIndex() int { return f.TipIndex() - 3 }

// MidIndex returns the landmark index of the joint after the base.
func (f Finger) MidIndex() int { return f.TipIndex() - 2 }

// TargetPosition is one anchor for the renderer. The set of implementations
// is closed: FingerPosition, WristPosition and NeckPosition.
type TargetPosition interface {
	Kind() TargetKind
	sealed()
}

// FingerPosition anchors a ring. Coordinates are in device space: x and y in
// [-1,1] with y pointing up.
type FingerPosition struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Angle  float64 `json:"angle"`
	Finger Finger  `json:"finger"`
}

// WristPosition anchors a bracelet.
type WristPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Width float64 `json:"width"`
	Angle float64 `json:"angle"`
}

// NeckPosition anchors a necklace. It is derived from wrist geometry because
// the hand model has no neck landmark; treat it as a placeholder estimate.
type NeckPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Width float64 `json:"width"`
}

func (FingerPosition) Kind() TargetKind { return KindFinger }
func (WristPosition) Kind() TargetKind  { return KindWrist }
func (NeckPosition) Kind() TargetKind   { return KindNeck }

func (FingerPosition) sealed() {}
func (WristPosition) sealed()  {}
func (NeckPosition) sealed()   {}
