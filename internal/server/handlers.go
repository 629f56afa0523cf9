package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"metropulse/internal/export"
	"metropulse/internal/logging"
	"metropulse/internal/rag"
	"metropulse/internal/scoring"
	"metropulse/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ServerError("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ========== Policy questions ==========

type queryRequest struct {
	Query string `json:"query"`
}

// handleQuery answers a policy question grounded in the document corpus.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}

	if s.engine == nil {
		writeJSON(w, http.StatusOK, rag.Answer{
			Response: "The policy assistant is not available. Configure an LLM provider to enable insights.",
			Sources:  []string{},
		})
		return
	}

	start := time.Now()
	answer := s.engine.Answer(r.Context(), query)

	if s.store != nil {
		if err := s.store.RecordQuery(store.QueryRecord{
			Query:      query,
			Response:   answer.Response,
			Sources:    answer.Sources,
			Model:      s.model,
			DurationMs: time.Since(start).Milliseconds(),
		}); err != nil {
			logging.StoreError("failed to record query: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleSampleQueries returns starter questions for the insights page.
func (s *Server) handleSampleQueries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"queries": rag.SampleQueries()})
}

// handleHistory returns recently answered questions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string][]store.QueryRecord{"history": {}})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer up to 500")
			return
		}
		limit = n
	}

	records, err := s.store.RecentQueries(limit)
	if err != nil {
		logging.StoreError("failed to load history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if records == nil {
		records = []store.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string][]store.QueryRecord{"history": records})
}

// ========== Metro data ==========

// handleMetros lists every scored metro, best first.
func (s *Server) handleMetros(w http.ResponseWriter, r *http.Request) {
	scored := s.Scored()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metros": scoring.TopN(scored, len(scored)),
	})
}

// handleMetro returns one metro by exact name.
func (s *Server) handleMetro(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for _, m := range s.Scored() {
		if strings.EqualFold(m.Name, name) {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, "metro not found")
}

// handleSummary returns aggregate statistics over the snapshot.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scoring.Summarize(s.Scored()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"metros": len(s.Scored()),
	})
}

// ========== Charts ==========

func (s *Server) writeChart(w http.ResponseWriter, png []byte, err error) {
	if err != nil {
		logging.ServerError("chart render failed: %v", err)
		writeError(w, http.StatusInternalServerError, "chart render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleRankingChart(w http.ResponseWriter, r *http.Request) {
	topN := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topN = n
		}
	}
	png, err := export.RankingChart(s.Scored(), topN)
	s.writeChart(w, png, err)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	png, err := export.CategoryChart(s.Scored())
	s.writeChart(w, png, err)
}

func (s *Server) handleIncomeChart(w http.ResponseWriter, r *http.Request) {
	png, err := export.IncomeScatterChart(s.Scored())
	s.writeChart(w, png, err)
}

func (s *Server) handleComponentChart(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("metro")
	if name == "" {
		writeError(w, http.StatusBadRequest, "metro parameter required")
		return
	}
	for _, m := range s.Scored() {
		if strings.EqualFold(m.Name, name) {
			png, err := export.ComponentChart(m)
			s.writeChart(w, png, err)
			return
		}
	}
	writeError(w, http.StatusNotFound, "metro not found")
}
