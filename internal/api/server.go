// ABOUTME: HTTP query service over the retrieval orchestrator
// ABOUTME: Listens immediately and answers 503 until collaborators are ready
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
)

// Server serves the query API. The orchestrator is attached once ready.
type Server struct {
	rag    atomic.Pointer[core.RAGService]
	logger *slog.Logger
	addr   string

	handler http.Handler
	server  *http.Server
}

// NewServer builds a server that will listen on addr
func NewServer(addr string, logger *slog.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logging.NewComponentLogger(logger, "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/ask/stream", s.handleAskStream)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/examples", s.handleExamples)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/episodes/{number}", s.handleEpisode)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = withRequestID(withAccessLog(s.logger, s.withRecover(withCORS(mux))))
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// generation can take minutes on CPU-only hosts
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetReady attaches the orchestrator; requests are served from then on
func (s *Server) SetReady(rag *core.RAGService) {
	s.rag.Store(rag)
	s.logger.Info("rag service ready")
}

// Ready reports whether the orchestrator is attached
func (s *Server) Ready() bool {
	return s.rag.Load() != nil
}

// Handler returns the full middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the listen address
func (s *Server) Listen() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	return listener, nil
}

// Serve runs until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeErrorDetail(w http.ResponseWriter, status int, message, detail string) {
	s.writeJSON(w, status, map[string]string{"error": message, "message": detail})
}
