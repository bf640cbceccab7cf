package tray

import (
	"strings"

	"github.com/ayusman/tryon/internal/tracking"
)

const (
	statusWaiting = "Waiting for hand"
	statusLost    = "Hand lost"
)

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func jewelryTitle(j tracking.Jewelry) string {
	return capitalize(string(j))
}

func fingerTitle(f tracking.Finger) string {
	return capitalize(string(f)) + " finger"
}

func trackingStatus(j tracking.Jewelry, pos tracking.TargetPosition) string {
	if p, ok := pos.(tracking.FingerPosition); ok {
		return "Tracking " + string(j) + " on " + string(p.Finger) + " finger"
	}
	return "Tracking " + string(j)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
