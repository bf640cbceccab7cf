package server

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/tracking"
)

var (
	landmarkColor = color.RGBA{R: 0, G: 220, B: 0, A: 0}
	boneColor     = color.RGBA{R: 200, G: 200, B: 200, A: 0}
	anchorColor   = color.RGBA{R: 255, G: 190, B: 0, A: 0}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// handBones joins landmark indices into the hand skeleton.
var handBones = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {0, 17}, {17, 18}, {18, 19}, {19, 20},
}

// Overlay draws the detected hand and the jewelry anchor onto a frame.
type Overlay struct {
	Hand     *detector.HandLandmarks
	Position tracking.TargetPosition
	State    tracking.State
}

// Draw renders the overlay in place.
func (o Overlay) Draw(img *gocv.Mat) {
	w, h := img.Cols(), img.Rows()
	if w == 0 || h == 0 {
		return
	}

	if o.Hand != nil && o.Hand.Validate() == nil {
		pts := o.Hand.Points
		for _, b := range handBones {
			gocv.Line(img, imagePoint(pts[b[0]], w, h), imagePoint(pts[b[1]], w, h), boneColor, 1)
		}
		for _, p := range pts {
			gocv.Circle(img, imagePoint(p, w, h), 3, landmarkColor, -1)
		}
	}

	if o.Position != nil {
		drawAnchor(img, o.Position, w, h)
	}

	label := string(o.State.Jewelry)
	if o.State.Jewelry == tracking.JewelryRing {
		label += " / " + string(o.State.Finger)
	}
	if o.State.CalibrationMode {
		label += " [calibrating]"
	}
	if label != "" {
		gocv.PutText(img, label, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, textColor, 1)
	}
}

func drawAnchor(img *gocv.Mat, pos tracking.TargetPosition, w, h int) {
	switch p := pos.(type) {
	case tracking.FingerPosition:
		center := devicePoint(p.X, p.Y, w, h)
		drawBand(img, center, p.Angle, p.Width*float64(w))
		gocv.PutText(img, fmt.Sprintf("%.0f deg", p.Angle*180/math.Pi), center.Add(image.Pt(8, -8)),
			gocv.FontHersheySimplex, 0.4, anchorColor, 1)
	case tracking.WristPosition:
		drawBand(img, devicePoint(p.X, p.Y, w, h), p.Angle+math.Pi/2, p.Width*float64(w))
	case tracking.NeckPosition:
		gocv.Circle(img, devicePoint(p.X, p.Y, w, h), int(p.Width*float64(w)/2), anchorColor, 2)
	}
}

// drawBand draws a segment of the given pixel length across a limb whose
// axis points along angle.
func drawBand(img *gocv.Mat, center image.Point, angle, length float64) {
	half := length / 2
	dx := -math.Sin(angle) * half
	dy := math.Cos(angle) * half
	a := image.Pt(center.X+int(dx), center.Y+int(dy))
	b := image.Pt(center.X-int(dx), center.Y-int(dy))
	gocv.Line(img, a, b, anchorColor, 3)
	gocv.Circle(img, center, 4, anchorColor, -1)
}

// imagePoint maps a normalized landmark to pixels.
func imagePoint(p detector.Point3D, w, h int) image.Point {
	return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
}

// devicePoint maps device coordinates (y up, [-1,1]) to pixels.
func devicePoint(x, y float64, w, h int) image.Point {
	return image.Pt(int((x+1)/2*float64(w)), int((1-y)/2*float64(h)))
}
