package filter

import (
	"sort"

	"github.com/google/uuid"
)

// Tracker defaults.
const (
	DefaultMaxTracks     = 2
	DefaultMatchDistance = 0.25
	DefaultTrackTimeout  = 1000 // milliseconds
)

// TrackerConfig controls hand re-identification.
type TrackerConfig struct {
	// MaxTracks caps the number of hands tracked at once.
	MaxTracks int
	// MatchDistance is the largest jump, in normalized units, between frames
	// that still counts as the same hand.
	MatchDistance float64
	// TimeoutMs drops a track that has not been observed for this long.
	TimeoutMs int64
}

// Track is a hand identity that persists across frames.
type Track struct {
	ID         uuid.UUID
	Position   Point
	FirstSeen  int64
	LastSeen   int64
	Detections int
}

// Tracker assigns stable identities to per-frame hand observations by
// nearest-neighbour matching against the previous wrist positions of live tracks.
//
// The classifier's hand order is not stable: when one hand briefly drops out
// the remaining hands can shift index. Matching on position keeps smoothing
// and dwell state attached to the physical hand that produced it.
type Tracker struct {
	config TrackerConfig
	tracks []*Track // creation order; tracks[0] is the oldest
	lastMs int64    // timestamp of the previous Assign
}

// NewTracker creates a Tracker, filling zero config fields with defaults.
func NewTracker(config TrackerConfig) *Tracker {
	if config.MaxTracks <= 0 {
		config.MaxTracks = DefaultMaxTracks
	}
	if config.MatchDistance <= 0 {
		config.MatchDistance = DefaultMatchDistance
	}
	if config.TimeoutMs <= 0 {
		config.TimeoutMs = DefaultTrackTimeout
	}
	return &Tracker{config: config}
}

type candidate struct {
	obs, track int
	dist       float64
}

// Assign matches this frame's positions to tracks and returns one ID per
// position plus the IDs of tracks dropped this frame, either by timeout or
// by eviction.
//
// A hand that jumps farther than MatchDistance in one frame keeps its
// identity when it is the only unmatched position and exactly one track seen
// on the previous frame went unmatched. Otherwise an unmatched position opens
// a new track, evicting the stalest track not seen this frame when MaxTracks
// is reached. uuid.Nil is returned only when every track was matched this
// frame.
func (t *Tracker) Assign(nowMs int64, positions []Point) (ids []uuid.UUID, expired []uuid.UUID) {
	expired = t.expire(nowMs)
	prevMs := t.lastMs
	t.lastMs = nowMs

	ids = make([]uuid.UUID, len(positions))

	var candidates []candidate
	for i, p := range positions {
		for j, tr := range t.tracks {
			d := Distance(p, tr.Position)
			if d <= t.config.MatchDistance {
				candidates = append(candidates, candidate{obs: i, track: j, dist: d})
			}
		}
	}

	// Closest pairs win; each observation and each track is used at most once.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})

	obsDone := make([]bool, len(positions))
	matched := make(map[*Track]bool, len(t.tracks))
	for _, c := range candidates {
		tr := t.tracks[c.track]
		if obsDone[c.obs] || matched[tr] {
			continue
		}
		obsDone[c.obs] = true
		matched[tr] = true
		t.observe(tr, positions[c.obs], nowMs)
		ids[c.obs] = tr.ID
	}

	var lonelyObs []int
	for i := range positions {
		if !obsDone[i] {
			lonelyObs = append(lonelyObs, i)
		}
	}
	var lonelyTracks []*Track
	for _, tr := range t.tracks {
		if !matched[tr] && tr.LastSeen == prevMs {
			lonelyTracks = append(lonelyTracks, tr)
		}
	}
	if len(lonelyObs) == 1 && len(lonelyTracks) == 1 {
		i, tr := lonelyObs[0], lonelyTracks[0]
		matched[tr] = true
		t.observe(tr, positions[i], nowMs)
		ids[i] = tr.ID
		return ids, expired
	}

	for _, i := range lonelyObs {
		if len(t.tracks) >= t.config.MaxTracks {
			victim := t.stalest(matched)
			if victim == nil {
				continue
			}
			t.remove(victim)
			expired = append(expired, victim.ID)
		}
		tr := &Track{
			ID:         uuid.New(),
			Position:   positions[i],
			FirstSeen:  nowMs,
			LastSeen:   nowMs,
			Detections: 1,
		}
		t.tracks = append(t.tracks, tr)
		matched[tr] = true
		ids[i] = tr.ID
	}

	return ids, expired
}

func (t *Tracker) observe(tr *Track, p Point, nowMs int64) {
	tr.Position = p
	tr.LastSeen = nowMs
	tr.Detections++
}

// stalest returns the least recently seen track not in skip, or nil.
func (t *Tracker) stalest(skip map[*Track]bool) *Track {
	var victim *Track
	for _, tr := range t.tracks {
		if skip[tr] {
			continue
		}
		if victim == nil || tr.LastSeen < victim.LastSeen {
			victim = tr
		}
	}
	return victim
}

func (t *Tracker) remove(victim *Track) {
	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr != victim {
			live = append(live, tr)
		}
	}
	t.tracks = live
}

// expire removes tracks not observed within the timeout.
func (t *Tracker) expire(nowMs int64) []uuid.UUID {
	var expired []uuid.UUID
	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if nowMs-tr.LastSeen > t.config.TimeoutMs {
			expired = append(expired, tr.ID)
			continue
		}
		live = append(live, tr)
	}
	t.tracks = live
	return expired
}

// Rank returns the creation rank of a live track (0 = oldest) or -1.
func (t *Tracker) Rank(id uuid.UUID) int {
	for i, tr := range t.tracks {
		if tr.ID == id {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of the live tracks, oldest first.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// Reset drops every track.
func (t *Tracker) Reset() {
	t.tracks = nil
	t.lastMs = 0
}
