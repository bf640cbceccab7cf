package gesture

// DefaultPoseWindow is the number of agreeing observations needed to switch pose.
const DefaultPoseWindow = 3

// Stabilizer suppresses single-frame pose flicker. The reported pose only
// changes once the last Window observations agree.
type Stabilizer struct {
	window  int
	recent  []Pose
	current Pose
}

// NewStabilizer creates a pose Stabilizer. Windows below 1 use DefaultPoseWindow.
func NewStabilizer(window int) *Stabilizer {
	if window < 1 {
		window = DefaultPoseWindow
	}
	return &Stabilizer{
		window:  window,
		recent:  make([]Pose, 0, window),
		current: PoseUnknown,
	}
}

// Observe records p and returns the stabilized pose.
func (s *Stabilizer) Observe(p Pose) Pose {
	if len(s.recent) >= s.window {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:s.window-1]
	}
	s.recent = append(s.recent, p)

	// First observation after a reset is taken as is.
	if len(s.recent) == 1 {
		s.current = p
		return p
	}
	if len(s.recent) < s.window {
		return s.current
	}
	for _, r := range s.recent {
		if r != p {
			return s.current
		}
	}
	s.current = p
	return p
}

// Current returns the stabilized pose.
func (s *Stabilizer) Current() Pose { return s.current }

// Reset forgets all observations.
func (s *Stabilizer) Reset() {
	s.recent = s.recent[:0]
	s.current = PoseUnknown
}
