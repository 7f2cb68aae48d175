// Package api exposes the async ingest service over HTTP: dump submission,
// job polling, and the run ledger.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kbsync/internal/ledger"
	"kbsync/internal/pipeline"
)

// Config tunes the HTTP surface.
type Config struct {
	// Token guards the write endpoints (bearer auth). Empty disables auth.
	Token string
	// MaxUploadBytes caps dump uploads (default 256 MiB).
	MaxUploadBytes int64
}

func (c Config) withDefaults() Config {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 256 << 20
	}
	return c
}

// Server is the ingest HTTP API.
type Server struct {
	router chi.Router
	orch   *pipeline.Orchestrator
	runs   ledger.Store
	log    pipeline.Logger
	cfg    Config
}

// NewServer wires the routes. runs may be nil when no ledger is configured;
// GET /api/runs then reports 503.
func NewServer(orch *pipeline.Orchestrator, runs ledger.Store, log pipeline.Logger, cfg Config) *Server {
	s := &Server{
		orch: orch,
		runs: runs,
		log:  log,
		cfg:  cfg.withDefaults(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Read endpoints are public; polling must work for whoever got handed
	// a poll URL.
	r.Get("/health", s.handleHealth)
	r.Get("/api/dumps/{jobID}", s.handleDumpStatus)
	r.Get("/api/runs", s.handleRuns)

	r.Group(func(r chi.Router) {
		if s.cfg.Token != "" {
			r.Use(AuthMiddleware(s.cfg.Token))
		}
		r.Post("/api/dumps", s.handleSubmitDump)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
