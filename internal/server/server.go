// Package server exposes the resilience dashboard over HTTP: JSON APIs for
// metro scores and policy questions, PNG chart endpoints, and HTML pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"metropulse/internal/config"
	"metropulse/internal/logging"
	"metropulse/internal/rag"
	"metropulse/internal/scoring"
	"metropulse/internal/store"
)

// Answerer is the slice of the RAG engine the server needs.
type Answerer interface {
	Answer(ctx context.Context, query string) rag.Answer
}

// Server serves the dashboard.
type Server struct {
	cfg    config.ServerConfig
	engine Answerer
	store  *store.Store
	model  string

	mu     sync.RWMutex
	scored []scoring.Scored

	httpServer *http.Server
}

// New builds a server. The store may be nil when running without history.
func New(cfg config.ServerConfig, engine Answerer, st *store.Store, scored []scoring.Scored, model string) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		store:  st,
		model:  model,
		scored: scored,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      withRequestLogging(withCORS(mux)),
		ReadTimeout:  parseDurationOr(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: parseDurationOr(cfg.WriteTimeout, 60*time.Second),
	}

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// JSON API
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/metros", s.handleMetros)
	mux.HandleFunc("GET /api/metros/{name}", s.handleMetro)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/sample-queries", s.handleSampleQueries)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Chart images
	mux.HandleFunc("GET /charts/ranking.png", s.handleRankingChart)
	mux.HandleFunc("GET /charts/categories.png", s.handleCategoryChart)
	mux.HandleFunc("GET /charts/income.png", s.handleIncomeChart)
	mux.HandleFunc("GET /charts/components.png", s.handleComponentChart)

	// HTML pages
	mux.HandleFunc("GET /{$}", s.handleOverviewPage)
	mux.HandleFunc("GET /rankings", s.handleRankingsPage)
	mux.HandleFunc("GET /compare", s.handleComparePage)
	mux.HandleFunc("GET /insights", s.handleInsightsPage)
}

// Scored returns the current snapshot.
func (s *Server) Scored() []scoring.Scored {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scoring.Scored, len(s.scored))
	copy(out, s.scored)
	return out
}

// SetScored swaps in a new snapshot, e.g. after a re-collection.
func (s *Server) SetScored(scored []scoring.Scored) {
	s.mu.Lock()
	s.scored = scored
	s.mu.Unlock()
	logging.Server("data snapshot replaced: %d metros", len(scored))
}

// Handler exposes the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Server("listening on %s", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Server("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
