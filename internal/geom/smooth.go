package geom

// Smoother keeps an exponential moving average of board corners.
// A detection that jumps further than ResetThreshold times the current
// mean side length is treated as a camera move and restarts the average.
type Smoother struct {
	Alpha          float64
	ResetThreshold float64

	current Quad
	primed  bool
}

// NewSmoother creates a corner smoother. alpha is the weight of the newest detection.
func NewSmoother(alpha, resetThreshold float64) *Smoother {
	return &Smoother{Alpha: alpha, ResetThreshold: resetThreshold}
}

// Update folds in a detection and returns the smoothed quad and whether
// the average was restarted.
func (s *Smoother) Update(q Quad) (Quad, bool) {
	if !s.primed {
		s.current, s.primed = q, true
		return q, true
	}

	if q.MaxDisplacement(s.current) > s.ResetThreshold*s.current.MeanSide() {
		s.current = q
		return q, true
	}

	for i := range s.current {
		s.current[i].X = s.Alpha*q[i].X + (1-s.Alpha)*s.current[i].X
		s.current[i].Y = s.Alpha*q[i].Y + (1-s.Alpha)*s.current[i].Y
	}
	return s.current, false
}

// Current returns the smoothed quad, if any
func (s *Smoother) Current() (Quad, bool) {
	return s.current, s.primed
}

// Reset forgets the average
func (s *Smoother) Reset() {
	s.current, s.primed = Quad{}, false
}
