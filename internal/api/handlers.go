// ABOUTME: Route handlers for ask, streaming ask, search, episodes, stats, and status
// ABOUTME: Errors are JSON envelopes; 503 before readiness, 400 bad input, 500 failures
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

const (
	msgNotAvailable  = "RAG service not available"
	msgInitializing  = "The service is still initializing. Please try again in a moment."
	msgInternalError = "Internal server error"
)

type askRequest struct {
	Question     *string `json:"question"`
	ContextLimit *int    `json:"context_limit"`
}

// parseAsk validates an ask body. It returns the trimmed question and
// clamped limit, or a client-facing problem description.
func parseAsk(r *http.Request) (question string, limit int, problem string) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", 0, "Invalid request body"
	}
	if req.Question == nil {
		return "", 0, "Missing question in request body"
	}
	question = strings.TrimSpace(*req.Question)
	if question == "" {
		return "", 0, "Question cannot be empty"
	}
	limit = core.DefaultContextLimit
	if req.ContextLimit != nil {
		limit = *req.ContextLimit
	}
	return question, core.ClampContextLimit(limit), ""
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "History of Rome RAG",
		"ready":   s.Ready(),
		"endpoints": []endpoint{
			{http.MethodGet, "/health", "Health check"},
			{http.MethodPost, "/api/ask", "Ask a question"},
			{http.MethodPost, "/api/ask/stream", "Ask a question with streamed progress"},
			{http.MethodGet, "/api/status", "Component status"},
			{http.MethodGet, "/api/examples", "Example questions"},
			{http.MethodGet, "/api/search", "Search transcripts"},
			{http.MethodGet, "/api/episodes/{number}", "Episode summary"},
			{http.MethodGet, "/api/stats", "Collection statistics"},
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  models.StatusError,
			"message": "RAG service not initialized",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     models.StatusHealthy,
		"components": rag.Status(r.Context()),
		"timestamp":  time.Now().Unix(),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeErrorDetail(w, http.StatusServiceUnavailable, msgNotAvailable, msgInitializing)
		return
	}

	question, limit, problem := parseAsk(r)
	if problem != "" {
		s.writeError(w, http.StatusBadRequest, problem)
		return
	}

	result, err := rag.Ask(r.Context(), question, limit)
	if err != nil {
		s.logger.Error("error processing question", logging.Error(err))
		s.writeErrorDetail(w, http.StatusInternalServerError, msgInternalError, err.Error())
		return
	}
	result.RequestID = RequestID(r.Context())
	s.writeJSON(w, http.StatusOK, result)
}

// handleAskStream sends each phase as a server-sent event
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeErrorDetail(w, http.StatusServiceUnavailable, msgNotAvailable, msgInitializing)
		return
	}

	question, limit, problem := parseAsk(r)
	if problem != "" {
		s.writeError(w, http.StatusBadRequest, problem)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	emit := func(evt models.StreamEvent) error {
		payload, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	if err := rag.AskStream(r.Context(), question, limit, emit); err != nil {
		s.logger.Warn("stream ended with error", logging.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "initializing",
			"message": "RAG service is still starting up",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, rag.Status(r.Context()))
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Examples())
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeErrorDetail(w, http.StatusServiceUnavailable, msgNotAvailable, msgInitializing)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter q")
		return
	}
	limit, err := queryInt(r, "limit", core.DefaultContextLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	episode, err := queryInt(r, "episode", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hits, err := rag.Search(r.Context(), query, core.ClampContextLimit(limit), episode)
	if err != nil {
		s.logger.Error("search failed", logging.Error(err))
		s.writeErrorDetail(w, http.StatusInternalServerError, msgInternalError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": hits,
		"count":   len(hits),
	})
}

func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeErrorDetail(w, http.StatusServiceUnavailable, msgNotAvailable, msgInitializing)
		return
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid episode number")
		return
	}
	maxSegments, err := queryInt(r, "max_segments", core.DefaultEpisodeSegments)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := rag.EpisodeSummary(r.Context(), number, maxSegments)
	switch {
	case errors.Is(err, core.ErrEpisodeNotFound):
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Episode %d not found", number))
	case err != nil:
		s.logger.Error("episode summary failed", slog.Int("episode", number), logging.Error(err))
		s.writeErrorDetail(w, http.StatusInternalServerError, msgInternalError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rag := s.rag.Load()
	if rag == nil {
		s.writeErrorDetail(w, http.StatusServiceUnavailable, msgNotAvailable, msgInitializing)
		return
	}

	stats, err := rag.CollectionStats(r.Context())
	if err != nil {
		s.logger.Error("collection stats failed", logging.Error(err))
		s.writeErrorDetail(w, http.StatusInternalServerError, msgInternalError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "Endpoint not found")
}
