package filter

import (
	"testing"

	"github.com/google/uuid"
)

func TestTracker_StableAcrossReorder(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2})

	left := Point{X: 0.2, Y: 0.5}
	right := Point{X: 0.8, Y: 0.5}

	ids, _ := tr.Assign(0, []Point{left, right})
	leftID, rightID := ids[0], ids[1]
	if leftID == uuid.Nil || rightID == uuid.Nil || leftID == rightID {
		t.Fatalf("expected two distinct IDs, got %v", ids)
	}

	// Classifier swaps the order and both hands move a little.
	ids, _ = tr.Assign(33, []Point{{X: 0.82, Y: 0.52}, {X: 0.21, Y: 0.49}})
	if ids[0] != rightID || ids[1] != leftID {
		t.Errorf("identities followed list order instead of position: got %v, want [%v %v]", ids, rightID, leftID)
	}
}

func TestTracker_OneHandDropsOut(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2})

	ids, _ := tr.Assign(0, []Point{{X: 0.2, Y: 0.5}, {X: 0.8, Y: 0.5}})
	rightID := ids[1]

	// Only the right hand remains and now sits at index 0.
	ids, _ = tr.Assign(33, []Point{{X: 0.79, Y: 0.5}})
	if ids[0] != rightID {
		t.Errorf("remaining hand got %v, want %v", ids[0], rightID)
	}
}

func TestTracker_FarJumpIsNewHand(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2, MatchDistance: 0.1})

	first, _ := tr.Assign(0, []Point{{X: 0.1, Y: 0.1}})
	tr.Assign(33, nil)
	second, _ := tr.Assign(66, []Point{{X: 0.9, Y: 0.9}})

	if first[0] == second[0] {
		t.Error("a hand reappearing far away after a gap should open a new track")
	}
	if len(tr.Tracks()) != 2 {
		t.Errorf("expected 2 live tracks, got %d", len(tr.Tracks()))
	}
}

func TestTracker_SingleJumpKeepsIdentity(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2})

	ids, _ := tr.Assign(0, []Point{{X: 0.2, Y: 0.5}})
	original := ids[0]

	ids, expired := tr.Assign(33, []Point{{X: 0.5, Y: 0.5}})
	if ids[0] != original {
		t.Errorf("jumping hand got %v, want %v", ids[0], original)
	}
	if len(expired) != 0 {
		t.Errorf("nothing should expire, got %v", expired)
	}
	if n := len(tr.Tracks()); n != 1 {
		t.Errorf("expected 1 live track, got %d", n)
	}
}

func TestTracker_SwipeWithSecondHand(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2})

	ids, _ := tr.Assign(0, []Point{{X: 0.2, Y: 0.5}, {X: 0.8, Y: 0.6}})
	pointer, fist := ids[0], ids[1]

	for i := int64(1); i <= 5; i++ {
		ids, _ = tr.Assign(i*33, []Point{{X: 0.5, Y: 0.5}, {X: 0.8, Y: 0.6}})
		if ids[0] != pointer || ids[1] != fist {
			t.Fatalf("tick %d: got %v, want [%v %v]", i, ids, pointer, fist)
		}
	}
}

func TestTracker_EvictsStaleTrackAtCapacity(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2})

	ids, _ := tr.Assign(0, []Point{{X: 0.2, Y: 0.5}, {X: 0.8, Y: 0.5}})
	ghost, kept := ids[0], ids[1]

	// The left hand leaves; its track lingers until the timeout.
	tr.Assign(33, []Point{{X: 0.8, Y: 0.5}})

	ids, expired := tr.Assign(66, []Point{{X: 0.8, Y: 0.5}, {X: 0.3, Y: 0.95}})
	if ids[0] != kept {
		t.Errorf("matched hand got %v, want %v", ids[0], kept)
	}
	if ids[1] == uuid.Nil || ids[1] == ghost {
		t.Errorf("new hand got %v, want a fresh identity", ids[1])
	}
	if len(expired) != 1 || expired[0] != ghost {
		t.Errorf("expected the ghost track %v to be evicted, got %v", ghost, expired)
	}
	if tr.Rank(ghost) != -1 {
		t.Error("evicted track is still live")
	}
}

func TestTracker_MaxTracks(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 1})

	ids, _ := tr.Assign(0, []Point{{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.8}})
	if ids[0] == uuid.Nil {
		t.Error("first hand should be tracked")
	}
	if ids[1] != uuid.Nil {
		t.Error("second hand should be rejected when MaxTracks is reached")
	}
}

func TestTracker_Expiry(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2, TimeoutMs: 500})

	ids, _ := tr.Assign(0, []Point{{X: 0.5, Y: 0.5}})
	original := ids[0]

	_, expired := tr.Assign(400, nil)
	if len(expired) != 0 {
		t.Fatalf("track expired early: %v", expired)
	}

	_, expired = tr.Assign(501, nil)
	if len(expired) != 1 || expired[0] != original {
		t.Fatalf("expected %v to expire, got %v", original, expired)
	}

	ids, _ = tr.Assign(510, []Point{{X: 0.5, Y: 0.5}})
	if ids[0] == original {
		t.Error("expired identity must not be reused")
	}
}

func TestTracker_Rank(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxTracks: 2})

	ids, _ := tr.Assign(0, []Point{{X: 0.2, Y: 0.5}})
	older := ids[0]
	ids, _ = tr.Assign(33, []Point{{X: 0.8, Y: 0.5}, {X: 0.2, Y: 0.5}})

	if tr.Rank(older) != 0 {
		t.Errorf("Rank(older) = %d, want 0", tr.Rank(older))
	}
	if tr.Rank(ids[0]) != 1 {
		t.Errorf("Rank(newer) = %d, want 1", tr.Rank(ids[0]))
	}
	if tr.Rank(uuid.New()) != -1 {
		t.Error("unknown ID should rank -1")
	}

	tr.Reset()
	if len(tr.Tracks()) != 0 {
		t.Error("Reset should drop all tracks")
	}
}
