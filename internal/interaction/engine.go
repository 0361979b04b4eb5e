// Package interaction owns the per-hand gesture interaction state: hand
// identity, positional smoothing, and the pointer and scroll state machines.
//
// An Engine is fed one classification result per tick and invokes the host
// callbacks. It does no I/O and can be driven entirely by synthetic input.
package interaction

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/airpointer/internal/filter"
	"github.com/ayusman/airpointer/internal/landmark"
	"github.com/ayusman/airpointer/internal/pointer"
	"github.com/ayusman/airpointer/internal/scroll"
)

// Config holds every tuning parameter of the engine.
type Config struct {
	Alpha          float64
	Pointer        pointer.Config
	Scroll         scroll.Config
	Tracker        filter.TrackerConfig
	PointerGesture string
	ScrollGesture  string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:   filter.DefaultAlpha,
		Pointer: pointer.DefaultConfig(),
		Scroll:  scroll.DefaultConfig(),
		Tracker: filter.TrackerConfig{
			MaxTracks:     filter.DefaultMaxTracks,
			MatchDistance: filter.DefaultMatchDistance,
			TimeoutMs:     filter.DefaultTrackTimeout,
		},
		PointerGesture: landmark.GesturePointingUp,
		ScrollGesture:  landmark.GestureClosedFist,
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("smoothing factor must be in (0,1], got %g", c.Alpha)
	}
	if c.PointerGesture == "" || c.ScrollGesture == "" {
		return errors.New("pointer and scroll gestures must be set")
	}
	if c.PointerGesture == c.ScrollGesture {
		return fmt.Errorf("pointer and scroll gestures must differ, both are %q", c.PointerGesture)
	}
	if c.Pointer.DwellThreshold <= 0 || c.Pointer.DwellTimeMs <= 0 || c.Pointer.RefractoryMs < 0 {
		return errors.New("dwell threshold and time must be positive and refractory non-negative")
	}
	if c.Scroll.VelocityThreshold <= 0 || c.Scroll.ResetThreshold <= 0 {
		return errors.New("scroll thresholds must be positive")
	}
	if c.Tracker.MaxTracks <= 0 {
		return fmt.Errorf("max hands must be positive, got %d", c.Tracker.MaxTracks)
	}
	return nil
}

// Callbacks are the optional host hooks. They run on the goroutine that
// calls Process, while the engine lock is held, and must not call back into
// the Engine.
type Callbacks struct {
	// Hover fires at most once per tick with the primary pointing hand's cursor.
	Hover func(x, y float64, gesture string)
	// Click fires when a dwell completes.
	Click func(x, y float64)
	// GestureChange fires when a hand's gesture label changes.
	GestureChange func(gesture string, x, y float64)
	// ScrollBy fires with a pixel delta while a hand drag-scrolls.
	ScrollBy func(deltaPixels float64)
}

// Mode is which state machine is driving a hand this tick.
type Mode string

const (
	ModeNone    Mode = "none"
	ModePointer Mode = "pointer"
	ModeScroll  Mode = "scroll"
)

// HandState is the read-only view of one tracked hand after a tick.
type HandState struct {
	ID            uuid.UUID    `json:"id"`
	Gesture       string       `json:"gesture"`
	Mode          Mode         `json:"mode"`
	Cursor        filter.Point `json:"cursor"`
	Wrist         filter.Point `json:"wrist"`
	DwellProgress float64      `json:"dwell_progress"`
	Primary       bool         `json:"primary"`
}

// Snapshot is the engine state after a tick, consumed by the overlay.
type Snapshot struct {
	TimestampMs int64       `json:"timestamp_ms"`
	Hands       []HandState `json:"hands"`
}

// hand is the persistent per-identity state.
type hand struct {
	tip     *filter.Smoother
	wrist   *filter.Smoother
	pointer *pointer.Machine
	scroll  *scroll.Machine
	gesture string
}

// Engine processes classification results into pointer and scroll events.
type Engine struct {
	config    Config
	callbacks Callbacks
	tracker   *filter.Tracker
	hands     map[uuid.UUID]*hand
	lastTs    int64
	started   bool
	closed    bool
	last      Snapshot
	mu        sync.Mutex
}

// New creates an Engine.
func New(config Config, callbacks Callbacks) *Engine {
	return &Engine{
		config:    config,
		callbacks: callbacks,
		tracker:   filter.NewTracker(config.Tracker),
		hands:     make(map[uuid.UUID]*hand),
	}
}

func (e *Engine) newHand() *hand {
	return &hand{
		tip:     filter.NewSmoother(e.config.Alpha),
		wrist:   filter.NewSmoother(e.config.Alpha),
		pointer: pointer.New(e.config.Pointer),
		scroll:  scroll.New(e.config.Scroll),
	}
}

// Process applies one classification result taken at tsMs.
//
// A result whose timestamp is not strictly greater than the last applied one
// is discarded without touching any state, and so is every result after
// Close. The boolean reports whether the result was applied.
func (e *Engine) Process(tsMs int64, observed []landmark.Hand) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Snapshot{}, false
	}
	if e.started && tsMs <= e.lastTs {
		return Snapshot{}, false
	}
	e.started = true
	e.lastTs = tsMs

	// Identity follows the wrist: it barely moves when the pose changes,
	// while the fingertip jumps between pointing and fist.
	tips := make([]filter.Point, len(observed))
	wrists := make([]filter.Point, len(observed))
	for i := range observed {
		tip := observed[i].IndexTip()
		wrist := observed[i].Wrist()
		tips[i] = filter.Point{X: tip.X, Y: tip.Y}
		wrists[i] = filter.Point{X: wrist.X, Y: wrist.Y}
	}

	ids, expired := e.tracker.Assign(tsMs, wrists)
	for _, id := range expired {
		delete(e.hands, id)
	}

	snap := Snapshot{TimestampMs: tsMs}
	seen := make(map[uuid.UUID]bool, len(observed))

	hoverIdx, hoverRank := -1, -1

	for i := range observed {
		id := ids[i]
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true

		h, ok := e.hands[id]
		if !ok {
			h = e.newHand()
			e.hands[id] = h
		}

		cursor := h.tip.Update(tips[i])
		wrist := h.wrist.Update(wrists[i])

		gesture := observed[i].Gesture
		if gesture == "" {
			gesture = landmark.GestureNone
		}
		if gesture != h.gesture {
			h.gesture = gesture
			if e.callbacks.GestureChange != nil {
				e.callbacks.GestureChange(gesture, cursor.X, cursor.Y)
			}
		}

		pointing := gesture == e.config.PointerGesture
		fist := gesture == e.config.ScrollGesture

		pr := h.pointer.Update(cursor, tsMs, pointing)
		sr := h.scroll.Update(wrist.Y, fist)

		state := HandState{
			ID:            id,
			Gesture:       gesture,
			Mode:          ModeNone,
			Cursor:        cursor,
			Wrist:         wrist,
			DwellProgress: pr.Progress,
		}

		switch {
		case pr.Hover:
			state.Mode = ModePointer
			if pr.Click && e.callbacks.Click != nil {
				e.callbacks.Click(pr.Position.X, pr.Position.Y)
			}
		case sr.Active:
			state.Mode = ModeScroll
			if sr.Scroll && e.callbacks.ScrollBy != nil {
				e.callbacks.ScrollBy(sr.DeltaPixels)
			}
		}

		snap.Hands = append(snap.Hands, state)
		if state.Mode == ModePointer {
			rank := e.tracker.Rank(id)
			if hoverIdx < 0 || rank < hoverRank {
				hoverIdx = len(snap.Hands) - 1
				hoverRank = rank
			}
		}
	}

	// Tracked hands missing from this frame leave both machines.
	for id, h := range e.hands {
		if seen[id] {
			continue
		}
		h.pointer.Update(filter.Point{}, tsMs, false)
		h.scroll.Update(0, false)
	}

	if hoverIdx >= 0 {
		primary := &snap.Hands[hoverIdx]
		primary.Primary = true
		if e.callbacks.Hover != nil {
			e.callbacks.Hover(primary.Cursor.X, primary.Cursor.Y, primary.Gesture)
		}
	}

	sort.SliceStable(snap.Hands, func(a, b int) bool {
		return e.tracker.Rank(snap.Hands[a].ID) < e.tracker.Rank(snap.Hands[b].ID)
	})

	e.last = snap
	return snap, true
}

// Snapshot returns the state produced by the most recent applied tick.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// LastTimestamp returns the timestamp of the most recent applied tick.
func (e *Engine) LastTimestamp() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTs
}

// Close stops the engine. Once Close returns no callback fires again.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.hands = make(map[uuid.UUID]*hand)
	e.tracker.Reset()
	e.last = Snapshot{}
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
