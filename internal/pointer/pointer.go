// Package pointer turns a smoothed fingertip position under the pointing
// gesture into a virtual cursor with dwell-to-click.
package pointer

import "github.com/ayusman/airpointer/internal/filter"

// Default dwell parameters.
const (
	DefaultDwellThreshold = 0.05 // normalized units
	DefaultDwellTimeMs    = 1200
	DefaultRefractoryMs   = 500
)

// Config holds the dwell-click parameters.
type Config struct {
	// DwellThreshold is the distance from the anchor beyond which the cursor
	// counts as moving and the anchor is reset.
	DwellThreshold float64
	// DwellTimeMs is how long the cursor must stay within the threshold for a click.
	DwellTimeMs int64
	// RefractoryMs pushes the anchor time forward after a click so that a
	// held position does not click again immediately.
	RefractoryMs int64
}

// DefaultConfig returns the default dwell parameters.
func DefaultConfig() Config {
	return Config{
		DwellThreshold: DefaultDwellThreshold,
		DwellTimeMs:    DefaultDwellTimeMs,
		RefractoryMs:   DefaultRefractoryMs,
	}
}

// State is the pointer machine state.
type State int

const (
	// Idle means the hand is not making the pointing gesture.
	Idle State = iota
	// Tracking means the hand is pointing and the cursor follows it.
	Tracking
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	}
	return "unknown"
}

// Result is the outcome of one Update.
type Result struct {
	// Hover is true whenever the machine is Tracking; Position is the cursor.
	Hover    bool
	Position filter.Point
	// Click is true on the frame a dwell completes.
	Click bool
	// Progress is the dwell completion in [0,1], for the dwell ring.
	Progress float64
}

// Machine is the per-hand pointer state machine.
type Machine struct {
	config   Config
	state    State
	anchor   filter.Point
	anchorTs int64
}

// New creates a Machine in the Idle state. Zero config fields take defaults.
func New(config Config) *Machine {
	def := DefaultConfig()
	if config.DwellThreshold <= 0 {
		config.DwellThreshold = def.DwellThreshold
	}
	if config.DwellTimeMs <= 0 {
		config.DwellTimeMs = def.DwellTimeMs
	}
	if config.RefractoryMs < 0 {
		config.RefractoryMs = def.RefractoryMs
	}
	return &Machine{config: config}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Update advances the machine by one frame. pointing reports whether the
// hand's gesture this frame is the pointing gesture; pos is the smoothed
// fingertip and nowMs the frame timestamp.
func (m *Machine) Update(pos filter.Point, nowMs int64, pointing bool) Result {
	if !pointing {
		// The anchor is left stale; re-entry snaps it.
		m.state = Idle
		return Result{}
	}

	res := Result{Hover: true, Position: pos}

	if m.state != Tracking {
		// Coming back into Tracking counts as movement, never as a dwell.
		m.state = Tracking
		m.anchor = pos
		m.anchorTs = nowMs
		return res
	}

	if filter.Distance(pos, m.anchor) > m.config.DwellThreshold {
		m.anchor = pos
		m.anchorTs = nowMs
		return res
	}

	dwell := nowMs - m.anchorTs
	if dwell >= m.config.DwellTimeMs {
		res.Click = true
		res.Progress = 1
		m.anchorTs = nowMs + m.config.RefractoryMs
		return res
	}

	if dwell > 0 {
		res.Progress = float64(dwell) / float64(m.config.DwellTimeMs)
	}
	return res
}

// Reset returns the machine to Idle.
func (m *Machine) Reset() {
	m.state = Idle
	m.anchor = filter.Point{}
	m.anchorTs = 0
}
