package detector

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayusman/airpointer/internal/landmark"
)

func TestWriteRequest_Framing(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}

	if err := writeRequest(&buf, 1234567, payload); err != nil {
		t.Fatalf("writeRequest() error = %v", err)
	}

	b := buf.Bytes()
	if len(b) != 12+len(payload) {
		t.Fatalf("request length = %d, want %d", len(b), 12+len(payload))
	}
	if ts := binary.BigEndian.Uint64(b[:8]); ts != 1234567 {
		t.Errorf("timestamp = %d, want 1234567", ts)
	}
	if n := binary.BigEndian.Uint32(b[8:12]); int(n) != len(payload) {
		t.Errorf("length prefix = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(b[12:], payload) {
		t.Error("payload mangled")
	}
}

func encodeHand(t *testing.T, h landmark.Hand, label string, score float64) jsonHand {
	t.Helper()
	jh := jsonHand{Handedness: h.Handedness, Score: score, Gesture: label, GestureScore: 0.9}
	for _, p := range h.Points {
		jh.Points = append(jh.Points, jsonPoint{X: p.X, Y: p.Y, Z: p.Z})
	}
	return jh
}

func TestDecodeResponse(t *testing.T) {
	pointing := landmark.PointingLandmarks()

	tests := []struct {
		name      string
		hands     []jsonHand
		wantCount int
		wantLabel string
	}{
		{
			name:      "labelled by the classifier",
			hands:     []jsonHand{encodeHand(t, pointing, landmark.GestureOpenPalm, 0.9)},
			wantCount: 1,
			wantLabel: landmark.GestureOpenPalm,
		},
		{
			name:      "unlabelled falls back to geometry",
			hands:     []jsonHand{encodeHand(t, pointing, "", 0.9)},
			wantCount: 1,
			wantLabel: landmark.GesturePointingUp,
		},
		{
			name:      "low score dropped",
			hands:     []jsonHand{encodeHand(t, pointing, "", 0.1)},
			wantCount: 0,
		},
		{
			name:      "truncated skeleton dropped",
			hands:     []jsonHand{{Points: make([]jsonPoint, 5), Score: 0.9}},
			wantCount: 0,
		},
		{
			name:      "no hands",
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := json.Marshal(response{Hands: tt.hands})
			if err != nil {
				t.Fatal(err)
			}
			hands, err := decodeResponse(line, 0.5)
			if err != nil {
				t.Fatalf("decodeResponse() error = %v", err)
			}
			if len(hands) != tt.wantCount {
				t.Fatalf("got %d hands, want %d", len(hands), tt.wantCount)
			}
			if tt.wantCount > 0 {
				if hands[0].Gesture != tt.wantLabel {
					t.Errorf("gesture = %q, want %q", hands[0].Gesture, tt.wantLabel)
				}
				if hands[0].IndexTip() != pointing.IndexTip() {
					t.Error("landmarks not carried over")
				}
			}
		})
	}
}

func TestDecodeResponse_Errors(t *testing.T) {
	if _, err := decodeResponse([]byte("not json\n"), 0); err == nil {
		t.Error("expected a parse error")
	}
	if _, err := decodeResponse([]byte(`{"error":"model crashed"}`), 0); err == nil {
		t.Error("expected the service error to surface")
	}
}

func TestMediaPipeDetector_LoadMissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptPath = filepath.Join(t.TempDir(), "missing.py")

	d := NewMediaPipeDetector(cfg)
	defer d.Close()

	if err := d.Load(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Load() error = %v, want ErrUnavailable", err)
	}
}

func TestMockDetector(t *testing.T) {
	ctx := context.Background()
	m := NewMockDetector()

	m.SetLoadError(ErrUnavailable)
	if err := m.Load(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Load() error = %v", err)
	}
	m.SetLoadError(nil)
	if err := m.Load(ctx); err != nil || !m.Loaded() {
		t.Fatalf("Load() error = %v, loaded = %v", err, m.Loaded())
	}

	fist := landmark.FistLandmarks()
	m.SetHands(landmark.PointingLandmarks())
	m.Script([]landmark.Hand{fist})

	first, _ := m.Detect(ctx, nil, 10)
	second, _ := m.Detect(ctx, nil, 20)
	if len(first) != 1 || first[0].IndexTip() != fist.IndexTip() {
		t.Error("scripted result should be returned first")
	}
	if len(second) != 1 || second[0].IndexTip() != landmark.PointingLandmarks().IndexTip() {
		t.Error("SetHands result should follow the script")
	}

	transient := errors.New("frame dropped")
	m.SetError(transient)
	if _, err := m.Detect(ctx, nil, 30); !errors.Is(err, transient) {
		t.Errorf("Detect() error = %v", err)
	}

	if got := m.Timestamps(); len(got) != 3 || got[2] != 30 {
		t.Errorf("Timestamps() = %v", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Detect(cancelled, nil, 40); !errors.Is(err, context.Canceled) {
		t.Errorf("Detect() on cancelled ctx = %v", err)
	}
	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}

	m.Close()
	if !m.Closed() || m.Loaded() {
		t.Error("Close should mark the mock closed")
	}
}
