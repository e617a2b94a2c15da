// Package api serves the track list, the aircraft overlay and the selection
// over HTTP, and streams live overlays over websockets.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/internal/auth"
	"github.com/unklstewy/opensky-overlay/internal/db"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
)

// HistoryReader is the part of the state-vector repository the API reads.
type HistoryReader interface {
	History(ctx context.Context, icao24 string, limit int) ([]db.StoredStateVector, error)
}

// Options holds the server's dependencies.
type Options struct {
	Store     *tracks.Store
	Selection *tracks.Selection

	// History is optional; without it the history endpoint answers 503
	History HistoryReader

	// Auth is optional; without it every endpoint is open
	Auth *auth.Service

	// Observer adds look angles to the track list when set
	Observer       *coordinates.Geographic
	Location       *time.Location
	TickInterval   time.Duration
	AllowedOrigins []string
	Logger         zerolog.Logger

	// Health reports extra fields for /healthz (poller stats)
	Health func() map[string]interface{}
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router    *chi.Mux
	opts      Options
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	now       func() time.Time
	sessionMu sync.RWMutex
	sessions  map[string]*overlaySession
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: opts.Logger.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now:      time.Now,
		sessions: make(map[string]*overlaySession),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		// Read-only routes
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleViewer))

			r.Get("/tracks", s.handleListTracks)
			r.Get("/tracks/{icao24}", s.handleGetTrack)
			r.Get("/tracks/{icao24}/overlay", s.handleGetOverlay)
			r.Get("/tracks/{icao24}/history", s.handleGetHistory)
			r.Get("/selection", s.handleGetSelection)
			r.Get("/ws/overlay/{icao24}", s.handleOverlayWebSocket)
		})

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleOperator))

			r.Post("/selection/{icao24}", s.handleSelect)
			r.Delete("/selection/{icao24}", s.handleRelease)
		})
	})
}

// SessionCount returns the number of open overlay websockets.
func (s *Server) SessionCount() int {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) addSession(sess *overlaySession) {
	s.sessionMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionMu.Unlock()
}

func (s *Server) removeSession(id string) {
	s.sessionMu.Lock()
	delete(s.sessions, id)
	s.sessionMu.Unlock()
}
