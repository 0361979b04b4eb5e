package landmark

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHand_Normalize(t *testing.T) {
	t.Run("wrist at origin and unit palm length", func(t *testing.T) {
		hand := PointingLandmarks().Translate(0.1, -0.2)
		hand.Gesture = GesturePointingUp

		normalized := hand.Normalize()

		wrist := normalized.Points[Wrist]
		if math.Abs(wrist.X) > epsilon || math.Abs(wrist.Y) > epsilon || math.Abs(wrist.Z) > epsilon {
			t.Errorf("expected wrist at origin, got %+v", wrist)
		}

		palm := Distance3D(Point3D{}, normalized.Points[MiddleMCP])
		if math.Abs(palm-1.0) > epsilon {
			t.Errorf("expected wrist to middle MCP distance 1.0, got %f", palm)
		}

		if normalized.Gesture != GesturePointingUp {
			t.Errorf("expected gesture to be preserved, got %q", normalized.Gesture)
		}
		if normalized.Handedness != hand.Handedness || normalized.Score != hand.Score {
			t.Error("expected handedness and score to be preserved")
		}
	})

	t.Run("translation invariant", func(t *testing.T) {
		a := OpenPalmLandmarks()
		b := a.Translate(0.2, 0.1)

		na := a.Normalize()
		nb := b.Normalize()
		for i := 0; i < NumLandmarks; i++ {
			if Distance3D(na.Points[i], nb.Points[i]) > 1e-6 {
				t.Fatalf("landmark %d differs after translation: %+v vs %+v", i, na.Points[i], nb.Points[i])
			}
		}
	})

	t.Run("nil hand returns nil", func(t *testing.T) {
		var hand *Hand
		if hand.Normalize() != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("zero scale returns translated only", func(t *testing.T) {
		hand := Hand{}
		for i := range hand.Points {
			hand.Points[i] = Point3D{X: 0.3, Y: 0.4}
		}

		normalized := hand.Normalize()
		if math.Abs(normalized.Points[IndexTip].X) > epsilon {
			t.Errorf("expected translated point at origin, got %+v", normalized.Points[IndexTip])
		}
	})
}

func TestHand_Translate(t *testing.T) {
	hand := FistLandmarks()
	moved := hand.Translate(0.05, -0.1)

	if math.Abs(moved.Wrist().X-(hand.Wrist().X+0.05)) > epsilon {
		t.Errorf("wrist X = %f, want %f", moved.Wrist().X, hand.Wrist().X+0.05)
	}
	if math.Abs(moved.IndexTip().Y-(hand.IndexTip().Y-0.1)) > epsilon {
		t.Errorf("index tip Y = %f, want %f", moved.IndexTip().Y, hand.IndexTip().Y-0.1)
	}
	if hand.Wrist().X != 0.5 {
		t.Error("Translate must not modify the receiver")
	}
}

func TestConnections(t *testing.T) {
	seen := make(map[int]bool)
	for _, c := range Connections {
		for _, idx := range c {
			if idx < 0 || idx >= NumLandmarks {
				t.Fatalf("connection %v references invalid landmark %d", c, idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != NumLandmarks {
		t.Errorf("skeleton covers %d landmarks, want %d", len(seen), NumLandmarks)
	}
}

func TestFixtures(t *testing.T) {
	tests := []struct {
		name          string
		hand          Hand
		indexExtended bool
	}{
		{"pointing", PointingLandmarks(), true},
		{"fist", FistLandmarks(), false},
		{"thumbs up", ThumbsUpLandmarks(), false},
		{"open palm", OpenPalmLandmarks(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extension := tt.hand.Points[IndexMCP].Y - tt.hand.Points[IndexTip].Y
			if tt.indexExtended && extension < 0.2 {
				t.Errorf("index finger should be extended, extension = %f", extension)
			}
			if !tt.indexExtended && extension > 0.15 {
				t.Errorf("index finger should be curled, extension = %f", extension)
			}
			for i, p := range tt.hand.Points {
				if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
					t.Errorf("landmark %d outside the normalized frame: %+v", i, p)
				}
			}
		})
	}
}
