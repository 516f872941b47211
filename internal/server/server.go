// Package server provides the local HTTP API: health, detection status,
// bindings, settings, plugins and a websocket event feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/gesture"
	"github.com/ayusman/handswitch/internal/plugin"
	"github.com/ayusman/handswitch/internal/server/api"
	"github.com/ayusman/handswitch/internal/store"
)

// Controller exposes the running detector. *app.App satisfies it.
type Controller interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	State() gesture.State
	Snapshot() gesture.Observation
	Cooldown() time.Duration
}

// Config holds the server dependencies. Routes whose dependency is nil are not registered.
type Config struct {
	StaticDir        string
	Store            *store.Store
	Plugins          *plugin.Manager
	Controller       Controller
	Events           *EventHub
	ValidateSettings api.SettingsValidator
	Logger           *zap.SugaredLogger
}

// Server is the HTTP front end.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *zap.SugaredLogger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
	}

	if s.config.Store != nil {
		var lookup api.PluginLookup
		if s.config.Plugins != nil {
			lookup = s.config.Plugins
		}
		bindings := api.NewBindingHandler(s.config.Store, lookup)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store, s.config.ValidateSettings))
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Enabled         bool                `json:"enabled"`
	CooldownSeconds float64             `json:"cooldown_seconds"`
	LastEmitted     gesture.Class       `json:"last_emitted"`
	LastEmission    *float64            `json:"last_emission_time"` // null until the first event
	Observation     gesture.Observation `json:"observation"`
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleStatus serves GET /api/status and PUT /api/status {"enabled": bool}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
			return
		}
		s.config.Controller.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() StatusResponse {
	c := s.config.Controller
	st := c.State()

	resp := StatusResponse{
		Enabled:         c.IsEnabled(),
		CooldownSeconds: c.Cooldown().Seconds(),
		LastEmitted:     st.LastEmitted,
		Observation:     c.Snapshot(),
	}
	if !math.IsInf(st.LastEmissionTime, 0) {
		t := st.LastEmissionTime
		resp.LastEmission = &t
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.config.Events != nil {
		s.config.Events.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
