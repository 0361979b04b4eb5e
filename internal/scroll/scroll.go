// Package scroll converts vertical wrist motion under the closed-fist gesture
// into velocity-gated page scrolling.
package scroll

import "math"

// Default scroll parameters.
const (
	DefaultVelocityThreshold = 0.006
	DefaultResetThreshold    = 0.02
	DefaultMultiplier        = 1800

	// velocityDecay and deltaWeight form the exponential smoothing of the
	// per-frame Y difference.
	velocityDecay = 0.6
	deltaWeight   = 0.4
)

// Config holds the scroll parameters.
type Config struct {
	// VelocityThreshold is the smoothed velocity, in normalized units per
	// frame, below which no scrolling happens.
	VelocityThreshold float64
	// ResetThreshold re-anchors the reference Y when a single-frame move is
	// this large but the smoothed velocity is still below threshold.
	ResetThreshold float64
	// Multiplier converts normalized velocity into pixels.
	Multiplier float64
}

// DefaultConfig returns the default scroll parameters.
func DefaultConfig() Config {
	return Config{
		VelocityThreshold: DefaultVelocityThreshold,
		ResetThreshold:    DefaultResetThreshold,
		Multiplier:        DefaultMultiplier,
	}
}

// Result is the outcome of one Update.
type Result struct {
	Active bool
	// Scroll is true when DeltaPixels should be applied by the host.
	Scroll      bool
	DeltaPixels float64
	Velocity    float64
}

// Machine is the per-hand scroll state machine.
type Machine struct {
	config   Config
	active   bool
	lastY    float64
	velocity float64
}

// New creates an inactive Machine. Zero config fields take defaults.
func New(config Config) *Machine {
	def := DefaultConfig()
	if config.VelocityThreshold <= 0 {
		config.VelocityThreshold = def.VelocityThreshold
	}
	if config.ResetThreshold <= 0 {
		config.ResetThreshold = def.ResetThreshold
	}
	if config.Multiplier == 0 {
		config.Multiplier = def.Multiplier
	}
	return &Machine{config: config}
}

// Active reports whether the machine is currently scrolling.
func (m *Machine) Active() bool {
	return m.active
}

// Update advances the machine by one frame. y is the smoothed wrist Y and
// fist reports whether the hand's gesture this frame is the scroll gesture.
func (m *Machine) Update(y float64, fist bool) Result {
	if !fist {
		// No inertia after release.
		m.Reset()
		return Result{}
	}

	if !m.active {
		m.active = true
		m.lastY = y
		m.velocity = 0
		return Result{Active: true}
	}

	delta := y - m.lastY
	m.velocity = m.velocity*velocityDecay + delta*deltaWeight

	res := Result{Active: true, Velocity: m.velocity}
	switch {
	case math.Abs(m.velocity) > m.config.VelocityThreshold:
		// Negated so content follows the hand like a drag.
		res.Scroll = true
		res.DeltaPixels = -m.velocity * m.config.Multiplier
		m.lastY = y
	case math.Abs(delta) > m.config.ResetThreshold:
		m.lastY = y
	}
	return res
}

// Reset returns the machine to inactive and discards the tracked Y and velocity.
func (m *Machine) Reset() {
	m.active = false
	m.lastY = 0
	m.velocity = 0
}
