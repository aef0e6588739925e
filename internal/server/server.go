// Package server exposes the research pipeline over HTTP: research runs
// (JSON and SSE), telemetry queries, trusted-source configuration, user
// feedback, and the eval harness.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/pipeline"
	"github.com/kaia-labs/researcher/internal/search"
	"github.com/kaia-labs/researcher/internal/telemetry"
	"github.com/kaia-labs/researcher/internal/trust"
)

// Server holds the HTTP surface's collaborators.
type Server struct {
	pipeline  *pipeline.Pipeline
	recorder  *telemetry.Recorder
	registry  *trust.Registry
	retriever search.Retriever
	origins   []string
}

// New builds the server.
func New(p *pipeline.Pipeline, recorder *telemetry.Recorder, registry *trust.Registry, retriever search.Retriever, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{
		pipeline:  p,
		recorder:  recorder,
		registry:  registry,
		retriever: retriever,
		origins:   allowedOrigins,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/research", s.handleResearch)
	r.Post("/research/stream", s.handleResearchStream)

	r.Get("/telemetry/runs", s.handleTelemetryRuns)
	r.Get("/telemetry/summary", s.handleTelemetrySummary)

	r.Get("/config/trusted-sources", s.handleGetTrustedSources)
	r.Put("/config/trusted-sources", s.handlePutTrustedSources)
	r.Post("/config/trusted-sources/reset", s.handleResetTrustedSources)

	r.Post("/feedback", s.handleFeedback)

	r.Get("/eval/questions", s.handleEvalQuestions)
	r.Post("/eval/run", s.handleEvalRun)

	r.Get("/debug/web-search", s.handleDebugWebSearch)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// limitParam parses ?limit= bounded to [1, max], with a default.
func limitParam(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
