package tray

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

func newTestTray(t *testing.T) (*Tray, *tracking.Publisher) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	pub, err := tracking.NewPublisher(tracking.DefaultState(), tracking.DefaultOptions(), log)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	return New(pub, log), pub
}

func TestTray_Selection(t *testing.T) {
	tr, pub := newTestTray(t)

	tr.SelectJewelry(tracking.JewelryBracelet)
	if got := pub.State().Jewelry; got != tracking.JewelryBracelet {
		t.Errorf("jewelry = %s, want bracelet", got)
	}

	tr.SelectFinger(tracking.FingerPinky)
	if got := pub.State().Finger; got != tracking.FingerPinky {
		t.Errorf("finger = %s, want pinky", got)
	}

	// Invalid selections are logged and ignored.
	tr.SelectFinger(tracking.Finger("toe"))
	if got := pub.State().Finger; got != tracking.FingerPinky {
		t.Errorf("finger after invalid selection = %s, want pinky", got)
	}
}

func TestTray_Calibration(t *testing.T) {
	tr, pub := newTestTray(t)

	tr.ToggleCalibration()
	if !pub.State().CalibrationMode {
		t.Fatal("calibration mode should be on")
	}
	tr.ToggleCalibration()
	if pub.State().CalibrationMode {
		t.Fatal("calibration mode should be off")
	}

	tr.ResetCalibration()
	if pub.Calibration().IsCalibrated {
		t.Error("reset should restore defaults")
	}
}

func TestTray_Toggle(t *testing.T) {
	tr, _ := newTestTray(t)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	if !tr.IsEnabled() {
		t.Fatal("tray should start enabled")
	}
	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
}

func TestTray_Status(t *testing.T) {
	tr, _ := newTestTray(t)
	ctx := context.Background()
	meta := tracking.Meta{Tick: 1, At: time.Now()}

	tests := []struct {
		name  string
		event tracking.Event
		want  string
	}{
		{"initial hand event", tracking.HandEvent{Meta: meta}, statusWaiting},
		{"ring", tracking.PositionEvent{Meta: meta, Jewelry: tracking.JewelryRing,
			Position: tracking.FingerPosition{Finger: tracking.FingerIndex}}, "Tracking ring on index finger"},
		{"bracelet", tracking.PositionEvent{Meta: meta, Jewelry: tracking.JewelryBracelet,
			Position: tracking.WristPosition{}}, "Tracking bracelet"},
		{"lost", tracking.LostEvent{Meta: meta}, statusLost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tr.Publish(ctx, tt.event); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if got := tr.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	if got := fingerTitle(tracking.FingerMiddle); got != "Middle finger" {
		t.Errorf("fingerTitle() = %q", got)
	}
	if got := jewelryTitle(tracking.JewelryNecklace); got != "Necklace" {
		t.Errorf("jewelryTitle() = %q", got)
	}
	if toggleTitle(false) != "○ Disabled" {
		t.Errorf("toggleTitle(false) = %q", toggleTitle(false))
	}
}
