package tracking

// State is everything the user selects for a tracking session. Values are
// immutable; transitions return a new State.
type State struct {
	Jewelry         Jewelry `json:"jewelry"`
	Finger          Finger  `json:"finger"`
	CalibrationMode bool    `json:"calibrationMode"`
	Stabilize       bool    `json:"stabilize"`
}

// DefaultState tracks the ring finger for a ring with stabilization on.
func DefaultState() State {
	return State{
		Jewelry:   JewelryRing,
		Finger:    FingerRing,
		Stabilize: true,
	}
}

// Kind returns the active target kind.
func (s State) Kind() TargetKind {
	return s.Jewelry.TargetKind()
}

// WithJewelry selects a jewelry type.
func (s State) WithJewelry(j Jewelry) State {
	s.Jewelry = j
	return s
}

// WithFinger selects the finger tracked for rings.
func (s State) WithFinger(f Finger) State {
	s.Finger = f
	return s
}

// WithCalibrationMode turns calibration mode on or off.
func (s State) WithCalibrationMode(on bool) State {
	s.CalibrationMode = on
	return s
}

// WithStabilize turns temporal smoothing on or off.
func (s State) WithStabilize(on bool) State {
	s.Stabilize = on
	return s
}

// targetChanged reports whether moving from s to next changes what is tracked.
func (s State) targetChanged(next State) bool {
	if s.Jewelry != next.Jewelry {
		return true
	}
	return next.Jewelry == JewelryRing && s.Finger != next.Finger
}
