package tracking

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/tryon/internal/detector"
)

// PalmOrientation describes the palm plane in frame coordinates.
type PalmOrientation struct {
	// Center is the mean of the wrist and the four finger MCP joints.
	Center detector.Point3D `json:"center"`
	// Normal is perpendicular to the palm, from (index−wrist)×(pinky−wrist).
	Normal detector.Point3D `json:"normal"`
	// Direction points from the wrist to the middle finger MCP.
	Direction detector.Point3D `json:"direction"`
	// Fingers holds the base-to-tip unit vector per finger.
	Fingers map[Finger]detector.Point3D `json:"fingers"`
}

var palmPoints = []int{
	detector.Wrist,
	detector.IndexMCP,
	detector.MiddleMCP,
	detector.RingMCP,
	detector.PinkyMCP,
}

// Orientation computes the palm orientation of a valid hand.
func Orientation(hand *detector.HandLandmarks) (PalmOrientation, error) {
	if err := hand.Validate(); err != nil {
		return PalmOrientation{}, err
	}
	pts := hand.Points

	var center r3.Vec
	for _, i := range palmPoints {
		center = r3.Add(center, vec(pts[i]))
	}
	center = r3.Scale(1/float64(len(palmPoints)), center)

	wrist := vec(pts[detector.Wrist])
	toIndex := r3.Sub(vec(pts[detector.IndexMCP]), wrist)
	toPinky := r3.Sub(vec(pts[detector.PinkyMCP]), wrist)

	o := PalmOrientation{
		Center:    point(center),
		Normal:    point(unit(r3.Cross(toIndex, toPinky), r3.Vec{Z: 1})),
		Direction: point(unit(r3.Sub(vec(pts[detector.MiddleMCP]), wrist), r3.Vec{Y: 1})),
		Fingers:   make(map[Finger]detector.Point3D, len(Fingers)),
	}
	for _, f := range Fingers {
		d := r3.Sub(vec(pts[f.TipIndex()]), vec(pts[f.BaseIndex()]))
		o.Fingers[f] = point(unit(d, r3.Vec{}))
	}
	return o, nil
}

// unit normalizes v, returning fallback for a degenerate vector.
func unit(v, fallback r3.Vec) r3.Vec {
	if r3.Norm(v) < 1e-12 {
		return fallback
	}
	return r3.Unit(v)
}

func vec(p detector.Point3D) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

func point(v r3.Vec) detector.Point3D {
	return detector.Point3D{X: v.X, Y: v.Y, Z: v.Z}
}
