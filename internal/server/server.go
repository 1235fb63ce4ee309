// Package server provides the HTTP server for the tinsel particle tree.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/config"
	"github.com/ayusman/tinsel/internal/render"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/server/api"
	"github.com/ayusman/tinsel/internal/store"
)

// TrackerStatus reports the gesture tracker's health.
type TrackerStatus interface {
	Stats() capture.TrackerStats
}

// DriverStatus reports the animation loop's health.
type DriverStatus interface {
	Running() bool
	Err() error
}

// Config holds the server configuration. Routes whose dependencies are nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Director  *scene.Director
	Tracker   TrackerStatus
	Driver    DriverStatus
	Stream    *render.Stream
	Hub       *Hub

	// Tuning is the base tuning that saved overrides are layered on.
	Tuning *config.Tuning
	// ApplyTuning receives the effective tuning after it changes.
	ApplyTuning func(*config.Tuning) error
	// ForgetPhoto is called with the path of each deleted photo.
	ForgetPhoto func(path string)
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
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

	if s.config.Director != nil {
		s.mux.Handle("/api/state", api.NewStateHandler(s.config.Director))
	}

	if s.config.Store != nil && s.config.Director != nil {
		photos := api.NewPhotoHandler(s.config.Store, s.config.Director, s.config.ForgetPhoto)
		s.mux.Handle("/api/photos", photos)
		s.mux.Handle("/api/photos/", photos)
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/tuning", api.NewTuningHandler(s.config.Store, s.config.Tuning, s.config.ApplyTuning))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/gesture", s.config.Hub)
	}

	if s.config.Stream != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Stream))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status  string                `json:"status"`
	Uptime  string                `json:"uptime"`
	Tracker *capture.TrackerStats `json:"tracker,omitempty"`
	Render  *renderHealth         `json:"render,omitempty"`
	Clients int                   `json:"clients"`
}

type renderHealth struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// handleHealth handles GET requests to /api/health. The status is
// "degraded" while the camera is disconnected or the render loop has
// stopped on an error.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).String(),
	}
	if s.config.Tracker != nil {
		stats := s.config.Tracker.Stats()
		resp.Tracker = &stats
		if stats.Running && !stats.Connected {
			resp.Status = "degraded"
		}
	}
	if s.config.Driver != nil {
		resp.Render = &renderHealth{Running: s.config.Driver.Running()}
		if err := s.config.Driver.Err(); err != nil {
			resp.Render.Error = err.Error()
			resp.Status = "degraded"
		}
	}
	if s.config.Hub != nil {
		resp.Clients = s.config.Hub.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
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
}
