package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrModelUnavailable is returned when the landmark model cannot be loaded.
var ErrModelUnavailable = errors.New("landmark model unavailable")

// Detector defines the interface for hand landmark detection implementations.
type Detector interface {
	// Load prepares the model. A failure here is fatal to the caller.
	Load() error

	// Detect analyzes a video frame and returns detected hands.
	// Returns an empty slice if no hands are detected; that is not an error.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect. Tracking follows one hand.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Primary picks the hand to track from a detection result: the one with the
// highest score. Returns nil when hands is empty.
func Primary(hands []HandLandmarks) *HandLandmarks {
	var best *HandLandmarks
	for i := range hands {
		if best == nil || hands[i].Score > best.Score {
			best = &hands[i]
		}
	}
	return best
}
