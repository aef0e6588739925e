package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kaia-labs/researcher/internal/eval"
	"github.com/kaia-labs/researcher/internal/llm"
	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/pipeline"
	"github.com/kaia-labs/researcher/internal/resilience"
	"github.com/kaia-labs/researcher/internal/search"
	"github.com/kaia-labs/researcher/internal/telemetry"
	"github.com/kaia-labs/researcher/internal/trust"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req model.ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := s.pipeline.Run(r.Context(), req, pipeline.RunOptions{})
	if err != nil {
		writeResearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeResearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, llm.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	case resilience.IsQuotaExhausted(err):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		zap.L().Error("research run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "research run failed")
	}
}

func (s *Server) handleResearchStream(w http.ResponseWriter, r *http.Request) {
	var req model.ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(e pipeline.Event) {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			zap.L().Warn("marshal stream event failed", zap.String("event", e.Name), zap.Error(err))
			return
		}
		if _, err := w.Write([]byte("event: " + e.Name + "\ndata: " + string(payload) + "\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}

	if _, err := s.pipeline.Run(r.Context(), req, pipeline.RunOptions{Emit: emit}); err != nil {
		// The error event was already emitted inside the run.
		zap.L().Warn("streamed research run failed", zap.Error(err))
	}
}

func (s *Server) handleTelemetryRuns(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 50, 200)
	writeJSON(w, http.StatusOK, map[string]any{
		"runs": s.recorder.Recent(limit),
	})
}

func (s *Server) handleTelemetrySummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.recorder.Summarize())
}

func (s *Server) handleGetTrustedSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": s.registry.Snapshot(),
	})
}

func (s *Server) handlePutTrustedSources(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sources []trust.Source `json:"sources"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	normalized := trust.NormalizeSources(body.Sources)
	if len(normalized) == 0 {
		writeError(w, http.StatusBadRequest, "at least one source with a domain is required")
		return
	}

	s.registry.Replace(normalized)
	zap.L().Info("trusted sources replaced", zap.Int("count", len(normalized)))
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.registry.Snapshot()})
}

func (s *Server) handleResetTrustedSources(w http.ResponseWriter, _ *http.Request) {
	s.registry.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.registry.Snapshot()})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RunID   string `json:"run_id"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Rating != 1 && body.Rating != -1 {
		writeError(w, http.StatusBadRequest, "rating must be 1 or -1")
		return
	}
	if len(body.Comment) > 2000 {
		body.Comment = body.Comment[:2000]
	}

	saved := s.recorder.RecordFeedback(telemetry.Feedback{
		RunID:   body.RunID,
		Rating:  body.Rating,
		Comment: body.Comment,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": saved.ID})
}

func (s *Server) handleEvalQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": eval.Questions()})
}

func (s *Server) handleEvalRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderA string `json:"providerA"`
		ProviderB string `json:"providerB"`
		Limit     int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ProviderA == "" {
		body.ProviderA = llm.ProviderOpenAI
	}
	if body.ProviderB == "" {
		body.ProviderB = llm.ProviderAnthropic
	}

	results := eval.Run(r.Context(), s.pipeline, body.ProviderA, body.ProviderB, body.Limit)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleDebugWebSearch runs one raw search and returns the normalized,
// scored sources. Operational aid for inspecting the search backend.
func (s *Server) handleDebugWebSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = "new look fashion UK 2025"
	}

	sources, err := s.retriever.Search(r.Context(), query, search.Options{})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(sources),
		"sources": sources,
	})
}
