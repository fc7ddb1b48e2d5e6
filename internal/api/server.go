package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/sectiongest/internal/config"
	"github.com/dgallion1/sectiongest/internal/ocr"
	"github.com/dgallion1/sectiongest/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for sectiongest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	proc         *pipeline.Processor
	ocr          ocr.Engine
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. engine may be nil when
// OCR is disabled.
func NewServer(orch *pipeline.Orchestrator, engine ocr.Engine, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		proc:         orch.Processor(),
		ocr:          engine,
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
	r.Post("/ingest", s.handleIngestSync)

	r.Group(func(r chi.Router) {
		if s.cfg.RequireAuth {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Post("/api/sections", s.handleSections)
		r.Get("/api/stats/extraction", s.handleExtractionStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := ocr.Info{Engine: "disabled", Languages: []string{}}
	if s.ocr != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		info = s.ocr.Describe(ctx)
		cancel()
	}

	status := "ok"
	if !info.Available {
		// Text-layer formats still work; scanned PDFs do not.
		status = "limited"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        status,
		"ocr_available": info.Available,
		"ocr":           info,
		"store":         s.cfg.StoreBackend,
		"queue_depth":   s.orchestrator.QueueDepth(),
	})
}
