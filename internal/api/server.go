package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/pipeline"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/render"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

// TemplateLister lists the templates available for rendering.
type TemplateLister interface {
	List(ctx context.Context) ([]templatestore.Info, error)
}

// Server is the HTTP API server for proposal rendering.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	templates    TemplateLister
	stats        *render.StageStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. templates may be nil
// when the store cannot list its catalogue.
func NewServer(orch *pipeline.Orchestrator, templates TemplateLister, stats *render.StageStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		templates:    templates,
		stats:        stats,
		log:          log,
		cfg:          cfg,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/proposals/render", s.handleRender)
		r.Post("/api/proposals/jobs", s.handleSubmit)
		r.Get("/api/proposals/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/proposals/jobs/{jobID}/artifact", s.handleJobArtifact)

		r.Get("/api/templates", s.handleListTemplates)
		r.Get("/api/stats/render", s.handleRenderStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
