// Package filter smooths tracked hand positions and keeps hand identities
// stable across frames.
package filter

import "math"

// DefaultAlpha is the default smoothing factor.
const DefaultAlpha = 0.4

// Point is a position in normalized frame coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Smoother applies first-order exponential smoothing to a 2D point:
//
//	s_t = s_{t-1} + alpha * (raw_t - s_{t-1})
//
// with s_0 set to the first raw sample. Larger alpha follows the raw input
// more closely; smaller alpha suppresses more jitter at the cost of lag.
type Smoother struct {
	alpha       float64
	value       Point
	initialized bool
}

// NewSmoother creates a Smoother. Alpha outside (0,1] falls back to DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Update feeds a raw sample and returns the new smoothed position.
func (s *Smoother) Update(raw Point) Point {
	if !s.initialized {
		s.value = raw
		s.initialized = true
		return s.value
	}

	s.value.X += (raw.X - s.value.X) * s.alpha
	s.value.Y += (raw.Y - s.value.Y) * s.alpha
	return s.value
}

// Value returns the current smoothed position and whether any sample has been seen.
func (s *Smoother) Value() (Point, bool) {
	return s.value, s.initialized
}

// Alpha returns the smoothing factor in use.
func (s *Smoother) Alpha() float64 {
	return s.alpha
}

// Reset forgets the smoothed position; the next sample re-initialises it.
func (s *Smoother) Reset() {
	s.value = Point{}
	s.initialized = false
}
