package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/embedprep/internal/config"
	"github.com/dgallion1/embedprep/internal/generate"
	"github.com/dgallion1/embedprep/internal/normalize"
	"github.com/dgallion1/embedprep/internal/pipeline"
	"github.com/dgallion1/embedprep/internal/splitter"
)

// Server is the HTTP API server for embedprep.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	gen          *generate.Client
	splitter     *splitter.Splitter
	log          *slog.Logger
	cfg          config.Config

	normOnce   sync.Once
	normalizer *normalize.Normalizer
}

// NewServer creates and configures the HTTP server. gen may be nil, in which
// case LLM stats are unavailable.
func NewServer(orch *pipeline.Orchestrator, gen *generate.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		gen:          gen,
		splitter:     splitter.New(),
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

		r.Post("/api/split", s.handleSplit)
		r.Post("/api/outline", s.handleOutline)

		r.Post("/api/jobs", s.handleCreateJob)
		r.Post("/api/jobs/batch", s.handleBatchJobs)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)

		r.Get("/api/outputs", s.handleListOutputs)
		r.Delete("/api/outputs/{hash}/{kind}", s.handleDeleteOutput)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// norm loads the tokenizer on first use; it may need to fetch vocabulary.
func (s *Server) norm() *normalize.Normalizer {
	s.normOnce.Do(func() {
		if s.normalizer == nil {
			s.normalizer = normalize.NewForModel(s.cfg.TokenizerModel)
		}
	})
	return s.normalizer
}
