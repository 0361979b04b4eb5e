package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/airpointer/internal/interaction"
)

type fakeEngine struct {
	mu       sync.Mutex
	enabled  bool
	startErr error
	snapshot interaction.Snapshot
}

func (f *fakeEngine) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeEngine) SetEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if enabled && f.startErr != nil {
		return f.startErr
	}
	f.enabled = enabled
	return nil
}

func (f *fakeEngine) Snapshot() interaction.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Engine: &fakeEngine{enabled: true}, Hub: NewHub()})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", response["status"])
	}
	if _, ok := response["uptime"]; !ok {
		t.Error("expected 'uptime' field in response")
	}
	if response["enabled"] != true {
		t.Errorf("expected enabled true, got %v", response["enabled"])
	}
	if response["clients"] != float64(0) {
		t.Errorf("expected 0 clients, got %v", response["clients"])
	}

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/health", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestServer_Engine(t *testing.T) {
	engine := &fakeEngine{snapshot: interaction.Snapshot{
		TimestampMs: 1300,
		Hands: []interaction.HandState{
			{Gesture: "Pointing_Up", Mode: interaction.ModePointer, DwellProgress: 0.5, Primary: true},
		},
	}}
	s := New(Config{Engine: engine})

	do := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/engine", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec
	}

	t.Run("GET reports state and snapshot", func(t *testing.T) {
		rec := do(http.MethodGet, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var got engineResponse
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.Enabled {
			t.Error("expected disabled engine")
		}
		if got.Snapshot.TimestampMs != 1300 || len(got.Snapshot.Hands) != 1 {
			t.Fatalf("unexpected snapshot %+v", got.Snapshot)
		}
		if got.Snapshot.Hands[0].Mode != interaction.ModePointer {
			t.Errorf("expected pointer mode, got %s", got.Snapshot.Hands[0].Mode)
		}
	})

	t.Run("POST enables", func(t *testing.T) {
		rec := do(http.MethodPost, `{"enabled": true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if !engine.IsEnabled() {
			t.Error("engine was not enabled")
		}
	})

	t.Run("POST without enabled field is rejected", func(t *testing.T) {
		rec := do(http.MethodPost, `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("start failure is 503", func(t *testing.T) {
		engine.SetEnabled(false)
		engine.startErr = errors.New("open camera: device busy")

		rec := do(http.MethodPost, `{"enabled": true}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		if body["error"] != "open camera: device busy" {
			t.Errorf("unexpected error body %q", body["error"])
		}
	})

	t.Run("DELETE is not allowed", func(t *testing.T) {
		rec := do(http.MethodDelete, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>airpointer</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"index at root", "/", http.StatusOK, testContent},
		{"file by name", "/style.css", http.StatusOK, cssContent},
		{"missing file", "/nonexistent.html", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/", "/api/engine", "/api/settings", "/api/stream", "/api/events"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}
