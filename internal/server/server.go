// Package server exposes the engine to a browser page: health, the overlay
// stream, the event websocket, and engine and settings control.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/airpointer/internal/interaction"
	"github.com/ayusman/airpointer/internal/store"
)

// EngineController is the part of the application the engine API drives.
type EngineController interface {
	IsEnabled() bool
	SetEnabled(enabled bool) error
	Snapshot() interaction.Snapshot
}

// ApplyFunc validates the complete set of settings overrides and applies
// them to the running application.
type ApplyFunc func(overrides map[string]string) error

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    EngineController
	Apply     ApplyFunc
	Frames    *FrameBuffer
	Hub       *Hub
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/events", s.config.Hub)
	}

	if s.config.Engine != nil {
		s.mux.HandleFunc("/api/engine", s.handleEngine)
	}

	if s.config.Store != nil && s.config.Apply != nil {
		settings := NewSettingsHandler(s.config.Store, s.config.Apply)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Engine != nil {
		response["enabled"] = s.config.Engine.IsEnabled()
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Clients()
	}

	writeJSON(w, http.StatusOK, response)
}

type engineResponse struct {
	Enabled  bool                 `json:"enabled"`
	Snapshot interaction.Snapshot `json:"snapshot"`
}

type engineRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleEngine reads or toggles the frame loop.
func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req engineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
			return
		}
		if err := s.config.Engine.SetEnabled(*req.Enabled); err != nil {
			log.Warn().Err(err).Bool("enabled", *req.Enabled).Msg("engine toggle failed")
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, engineResponse{
		Enabled:  s.config.Engine.IsEnabled(),
		Snapshot: s.config.Engine.Snapshot(),
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, if not nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready(ln.Addr())
	}

	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
