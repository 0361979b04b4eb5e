package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/airpointer/internal/config"
	"github.com/ayusman/airpointer/internal/store"
)

// SettingsHandler serves the persisted tuning overrides. Every change is
// validated and applied before it is stored.
type SettingsHandler struct {
	store *store.Store
	apply ApplyFunc
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(s *store.Store, apply ApplyFunc) *SettingsHandler {
	return &SettingsHandler{store: s, apply: apply}
}

type settingsResponse struct {
	Settings map[string]string `json:"settings"`
	Keys     []string          `json:"keys"`
}

// ServeHTTP routes /api/settings and /api/settings/{key}.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/settings"), "/")

	if key == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodPut:
			h.update(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.delete(w, key)
}

func (h *SettingsHandler) list(w http.ResponseWriter) {
	all, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Settings: all, Keys: config.SettingKeys()})
}

// update merges the request into the stored overrides.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var changes map[string]string
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}

	merged, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	for k, v := range changes {
		merged[k] = v
	}

	if err := h.apply(merged); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Settings().SetAll(changes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{Settings: merged, Keys: config.SettingKeys()})
}

func (h *SettingsHandler) delete(w http.ResponseWriter, key string) {
	remaining, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read settings")
		return
	}
	if _, ok := remaining[key]; !ok {
		writeError(w, http.StatusNotFound, "Setting not found")
		return
	}
	delete(remaining, key)

	if err := h.apply(remaining); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Settings().Delete(key); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
