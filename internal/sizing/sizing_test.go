package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/tryon/internal/tracking"
)

const epsilon = 1e-9

func TestUSRingSize(t *testing.T) {
	tests := []struct {
		name    string
		widthMM float64
		pos     Position
		want    float64
	}{
		{"typical base", 17, PositionBase, 7.0},
		{"narrow base", 15, PositionBase, 5.5},
		{"middle adjusts up", 17, PositionMiddle, 8.5},
		{"clamped low", 5, PositionBase, 3},
		{"clamped high", 30, PositionBase, 15},
		{"zero width", 0, PositionBase, 0},
		{"negative width", -3, PositionTip, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := USRingSize(tt.widthMM, tt.pos)
			if got != tt.want {
				t.Errorf("USRingSize(%v, %s) = %v, want %v", tt.widthMM, tt.pos, got, tt.want)
			}
		})
	}
}

func TestUSRingSize_HalfSteps(t *testing.T) {
	for w := 10.0; w <= 25; w += 0.25 {
		got := USRingSize(w, PositionBase)
		if math.Mod(got*2, 1) != 0 {
			t.Errorf("USRingSize(%v) = %v, not a half size", w, got)
		}
	}
}

func TestDiameterMM(t *testing.T) {
	base := DiameterMM(10, PositionBase)
	if math.Abs(base-11.3) > epsilon {
		t.Errorf("base diameter = %v, want 11.3", base)
	}
	if DiameterMM(10, PositionTip) <= DiameterMM(10, PositionMiddle) {
		t.Error("tip adjustment should exceed middle adjustment")
	}
}

func TestFromReference(t *testing.T) {
	s, err := FromReference(CreditCard, 0.4)
	if err != nil {
		t.Fatalf("FromReference() error = %v", err)
	}
	if math.Abs(s.MMPerUnit-214) > epsilon {
		t.Errorf("MMPerUnit = %v, want 214", s.MMPerUnit)
	}
	if s.Method != "credit_card" {
		t.Errorf("Method = %q, want credit_card", s.Method)
	}
	if got := s.ToMM(0.1); math.Abs(got-21.4) > epsilon {
		t.Errorf("ToMM(0.1) = %v, want 21.4", got)
	}

	for _, measured := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := FromReference(CreditCard, measured); !errors.Is(err, ErrInvalidReference) {
			t.Errorf("FromReference(%v) error = %v, want ErrInvalidReference", measured, err)
		}
	}

	for _, mm := range []float64{0, math.NaN(), math.Inf(1)} {
		ref := Reference{Name: "custom", WidthMM: mm}
		if _, err := FromReference(ref, 0.4); !errors.Is(err, ErrInvalidReference) {
			t.Errorf("FromReference(%v mm) error = %v, want ErrInvalidReference", mm, err)
		}
	}
}

func TestFromKnownRing_RoundTrip(t *testing.T) {
	const measured = 0.08
	s, err := FromKnownRing(7, measured)
	if err != nil {
		t.Fatalf("FromKnownRing() error = %v", err)
	}
	if got := USRingSize(s.ToMM(measured), PositionBase); got != 7 {
		t.Errorf("round trip size = %v, want 7", got)
	}

	invalid := []struct {
		name     string
		size     float64
		measured float64
	}{
		{"size out of range", 20, measured},
		{"size NaN", math.NaN(), measured},
		{"width zero", 7, 0},
		{"width NaN", 7, math.NaN()},
		{"width infinite", 7, math.Inf(1)},
	}
	for _, tt := range invalid {
		if _, err := FromKnownRing(tt.size, tt.measured); !errors.Is(err, ErrInvalidReference) {
			t.Errorf("%s: error = %v, want ErrInvalidReference", tt.name, err)
		}
	}
}

func TestLookupReference(t *testing.T) {
	if r, ok := LookupReference("coin"); !ok || r.WidthMM != 24.26 {
		t.Errorf("LookupReference(coin) = %+v, %v", r, ok)
	}
	if _, ok := LookupReference("banana"); ok {
		t.Error("LookupReference(banana) should fail")
	}
}

func TestEstimateFinger(t *testing.T) {
	calib := tracking.DefaultCalibration()
	scale := Scale{MMPerUnit: 85}

	got := EstimateFinger(calib, tracking.FingerRing, scale)
	if math.Abs(got.WidthMM-17) > epsilon {
		t.Errorf("WidthMM = %v, want 17", got.WidthMM)
	}
	if got.USSize != 7 {
		t.Errorf("USSize = %v, want 7", got.USSize)
	}
	if got.Calibrated {
		t.Error("default calibration reported as calibrated")
	}
}
