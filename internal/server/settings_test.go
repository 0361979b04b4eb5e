package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/airpointer/internal/config"
	"github.com/ayusman/airpointer/internal/store"
)

func newSettingsServer(t *testing.T) (*httptest.Server, *store.Store, *map[string]string) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	applied := map[string]string{}
	apply := func(overrides map[string]string) error {
		if _, err := config.Default().WithOverrides(overrides); err != nil {
			return err
		}
		applied = overrides
		return nil
	}

	ts := httptest.NewServer(New(Config{Store: st, Apply: apply}))
	t.Cleanup(ts.Close)
	return ts, st, &applied
}

func putSettings(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	return resp
}

func TestSettings_Workflow(t *testing.T) {
	ts, st, applied := newSettingsServer(t)
	client := ts.Client()

	// 1. Nothing stored yet, but the keys are advertised
	resp, err := client.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET /api/settings error = %v", err)
	}
	var listed settingsResponse
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if len(listed.Settings) != 0 {
		t.Errorf("expected no settings, got %v", listed.Settings)
	}
	if len(listed.Keys) != len(config.SettingKeys()) {
		t.Errorf("keys = %v, want %v", listed.Keys, config.SettingKeys())
	}

	// 2. Store an override
	resp = putSettings(t, ts, `{"engine.dwell_time_ms": "900"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got, _ := st.Settings().Get("engine.dwell_time_ms"); got != "900" {
		t.Errorf("stored dwell = %q, want 900", got)
	}
	if (*applied)["engine.dwell_time_ms"] != "900" {
		t.Errorf("applied = %v", *applied)
	}

	// 3. A second PUT merges with what is stored
	resp = putSettings(t, ts, `{"overlay.mirror": "false"}`)
	var merged settingsResponse
	json.NewDecoder(resp.Body).Decode(&merged)
	resp.Body.Close()
	if len(merged.Settings) != 2 || len(*applied) != 2 {
		t.Errorf("merged = %v, applied = %v", merged.Settings, *applied)
	}

	// 4. Delete one
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/settings/engine.dwell_time_ms", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if _, err := st.Settings().Get("engine.dwell_time_ms"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, ok := (*applied)["engine.dwell_time_ms"]; ok {
		t.Error("deleted setting is still applied")
	}

	// 5. Deleting again is a 404
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestSettings_Rejected(t *testing.T) {
	ts, st, _ := newSettingsServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty", `{}`},
		{"unknown key", `{"engine.warp_factor": "9"}`},
		{"bad value", `{"engine.dwell_time_ms": "soon"}`},
		{"fails validation", `{"engine.dwell_time_ms": "-5"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := putSettings(t, ts, tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}

	all, err := st.Settings().All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rejected settings were stored: %v", all)
	}
}
