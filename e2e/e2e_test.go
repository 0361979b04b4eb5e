package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/airpointer/internal/app"
	"github.com/ayusman/airpointer/internal/capture"
	"github.com/ayusman/airpointer/internal/config"
	"github.com/ayusman/airpointer/internal/detector"
	"github.com/ayusman/airpointer/internal/landmark"
	"github.com/ayusman/airpointer/internal/server"
	"github.com/ayusman/airpointer/internal/store"
)

type wireEvent struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Gesture   string  `json:"gesture"`
	Delta     float64 `json:"delta"`
	Timestamp int64   `json:"timestamp"`
}

type harness struct {
	ts  *httptest.Server
	app *app.App
	det *detector.MockDetector
	cam *capture.MockCamera
	st  *store.Store
	hub *server.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	det := detector.NewMockDetector()

	base := config.Default()
	base.Engine.DwellTimeMs = 300

	a := app.New(app.Config{
		Camera:      cam,
		Detector:    det,
		Engine:      base.Interaction(),
		Overlay:     base.OverlayOptions(),
		ActiveFPS:   30,
		IdleTimeout: time.Minute,
	})
	t.Cleanup(a.Close)

	hub := server.NewHub()
	a.Subscribe(hub.Publish)
	frames := server.NewFrameBuffer(0)
	a.SetFrameSink(frames)

	apply := func(overrides map[string]string) error {
		next, err := base.WithOverrides(overrides)
		if err != nil {
			return err
		}
		a.SetOverlay(next.OverlayOptions())
		return a.Reconfigure(next.Interaction())
	}

	srv := server.New(server.Config{
		Store:  st,
		Engine: a,
		Apply:  apply,
		Frames: frames,
		Hub:    hub,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})

	return &harness{ts: ts, app: a, det: det, cam: cam, st: st, hub: hub}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func (h *harness) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := h.ts.Client().Post(h.ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return resp
}

// waitForEvent reads events until one of type typ arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) wireEvent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no %s event before deadline: %v", typ, err)
		}
		var ev wireEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode %s: %v", msg, err)
		}
		if ev.Type == typ {
			return ev
		}
	}
}

func pointing() landmark.Hand {
	h := landmark.PointingLandmarks()
	h.Gesture = landmark.GesturePointingUp
	return h
}

func fist() landmark.Hand {
	h := landmark.FistLandmarks()
	h.Gesture = landmark.GestureClosedFist
	return h
}

func TestE2E_DwellClick(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	h.det.SetHands(pointing())
	conn := h.dial(t)

	resp := h.post(t, "/api/engine", `{"enabled": true}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	gesture := waitForEvent(t, conn, "gesture", 3*time.Second)
	if gesture.Gesture != landmark.GesturePointingUp {
		t.Errorf("gesture = %q, want %q", gesture.Gesture, landmark.GesturePointingUp)
	}

	click := waitForEvent(t, conn, "click", 3*time.Second)
	tip := pointing().IndexTip()
	if diff := click.X - tip.X; diff > 0.01 || diff < -0.01 {
		t.Errorf("click x = %.3f, want about %.3f", click.X, tip.X)
	}
	if click.Timestamp <= gesture.Timestamp {
		t.Errorf("click ts %d not after gesture ts %d", click.Timestamp, gesture.Timestamp)
	}

	resp, err := h.ts.Client().Get(h.ts.URL + "/api/engine")
	if err != nil {
		t.Fatal(err)
	}
	var state struct {
		Enabled  bool `json:"enabled"`
		Snapshot struct {
			Hands []struct {
				Mode string `json:"mode"`
			} `json:"hands"`
		} `json:"snapshot"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if !state.Enabled || len(state.Snapshot.Hands) != 1 || state.Snapshot.Hands[0].Mode != "pointer" {
		t.Errorf("unexpected engine state %+v", state)
	}
}

func TestE2E_FistScrolls(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	conn := h.dial(t)

	// Drop the fist a little further every frame.
	var frames [][]landmark.Hand
	for i := 0; i < 60; i++ {
		hand := fist()
		hand = hand.Translate(0, -0.5+float64(i)*0.01)
		frames = append(frames, []landmark.Hand{hand})
	}
	h.det.Script(frames...)

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	ev := waitForEvent(t, conn, "scroll", 5*time.Second)
	if ev.Delta == 0 {
		t.Error("scroll event carries no delta")
	}
}

func TestE2E_SettingsRestartEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	h.det.SetHands(pointing())

	if err := h.app.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodPut, h.ts.URL+"/api/settings", bytes.NewBufferString(`{"engine.dwell_time_ms": "2000"}`))
	resp, err := h.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT settings status = %d", resp.StatusCode)
	}

	if got := h.app.EngineConfig().Pointer.DwellTimeMs; got != 2000 {
		t.Errorf("engine dwell = %d, want 2000", got)
	}
	if !h.app.IsEnabled() {
		t.Error("engine should be running again after reconfigure")
	}
	if h.cam.Opens() != 2 {
		t.Errorf("camera opened %d times, want 2 (restart)", h.cam.Opens())
	}
	if v, _ := h.st.Settings().Get("engine.dwell_time_ms"); v != "2000" {
		t.Errorf("stored value = %q, want 2000", v)
	}
}

func TestE2E_EnableFailureReported(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t)
	h.det.SetLoadError(detector.ErrUnavailable)

	resp := h.post(t, "/api/engine", `{"enabled": true}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
	if h.app.IsEnabled() || h.cam.IsOpen() {
		t.Error("failed enable left the engine running or the camera open")
	}
}
