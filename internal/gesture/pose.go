// Package gesture classifies static hand poses from landmark sets.
package gesture

import (
	"math"

	"github.com/ayusman/tryon/internal/detector"
)

// Pose is a recognized static hand pose.
type Pose string

const (
	PoseUnknown            Pose = "unknown"
	PoseOpenPalm           Pose = "open_palm"
	PoseClosedFist         Pose = "closed_fist"
	PosePointing           Pose = "pointing"
	PosePinch              Pose = "pinch"
	PoseRingFingerExtended Pose = "ring_finger_extended"
)

// Thresholds in frame-normalized units.
const (
	pinchDistance      = 0.05
	verticalReach      = 0.1
	lateralReach       = 0.1
	thumbReachFactor   = 1.5
	openPalmMinFingers = 4
)

// Digit indexes into the extension array returned by Extended.
const (
	Thumb = iota
	Index
	Middle
	Ring
	Pinky
)

var fingerChains = [5][2]int{
	{detector.ThumbMCP, detector.ThumbTip},
	{detector.IndexMCP, detector.IndexTip},
	{detector.MiddleMCP, detector.MiddleTip},
	{detector.RingMCP, detector.RingTip},
	{detector.PinkyMCP, detector.PinkyTip},
}

// Extended reports for each digit whether it is extended. The hand must be
// valid.
func Extended(hand *detector.HandLandmarks) [5]bool {
	pts := hand.Points
	var out [5]bool

	// The thumb extends sideways, so compare its reach from the index base
	// against the thumb's own base.
	reach := detector.Distance2D(pts[detector.ThumbTip], pts[detector.IndexMCP])
	base := detector.Distance2D(pts[detector.ThumbMCP], pts[detector.IndexMCP])
	out[Thumb] = reach > thumbReachFactor*base

	for d := Index; d <= Pinky; d++ {
		mcp := pts[fingerChains[d][0]]
		tip := pts[fingerChains[d][1]]
		vertical := tip.Y - mcp.Y // image y grows downward
		switch {
		case vertical < -verticalReach:
			out[d] = true
		case math.Abs(vertical) < verticalReach:
			out[d] = math.Hypot(tip.X-mcp.X, tip.Z-mcp.Z) > lateralReach
		}
	}
	return out
}

// Classify returns the pose of hand, or PoseUnknown for a malformed set.
func Classify(hand *detector.HandLandmarks) Pose {
	if hand.Validate() != nil {
		return PoseUnknown
	}

	pts := hand.Points
	ext := Extended(hand)
	fingersUp := ext[Index] || ext[Middle] || ext[Ring] || ext[Pinky]

	// A curled index also lands next to a tucked thumb; a pinch needs the
	// index tip raised above its base.
	pinch := detector.Distance2D(pts[detector.ThumbTip], pts[detector.IndexTip])
	if pinch < pinchDistance && pts[detector.IndexTip].Y < pts[detector.IndexMCP].Y {
		return PosePinch
	}

	count := 0
	for _, e := range ext {
		if e {
			count++
		}
	}

	switch {
	case count >= openPalmMinFingers:
		return PoseOpenPalm
	case ext[Index] && !ext[Middle] && !ext[Ring] && !ext[Pinky]:
		return PosePointing
	case ext[Ring] && !ext[Index] && !ext[Middle] && !ext[Pinky]:
		return PoseRingFingerExtended
	case !fingersUp:
		return PoseClosedFist
	default:
		return PoseUnknown
	}
}
