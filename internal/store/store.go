// Package store persists scored metro snapshots, query history, and
// document embeddings in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"metropulse/internal/dataset"
	"metropulse/internal/logging"
	"metropulse/internal/scoring"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewStore initializes the SQLite database at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("opened %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	metrosTable := `
	CREATE TABLE IF NOT EXISTS metros (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		code TEXT,
		total_population REAL,
		median_income REAL,
		median_home_value REAL,
		bachelors_degree REAL,
		public_transportation REAL,
		unemployment_rate REAL,
		unemployment_change_1yr REAL,
		diversity_score REAL,
		top_industry_share REAL,
		employment_stability_score REAL,
		diversity_component_score REAL,
		income_resilience_score REAL,
		human_capital_score REAL,
		resilience_score REAL,
		resilience_category TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_metros_score ON metros(resilience_score);
	`

	historyTable := `
	CREATE TABLE IF NOT EXISTS query_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		response TEXT,
		sources TEXT,
		model TEXT,
		duration_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_history_created ON query_history(created_at);
	`

	embeddingsTable := `
	CREATE TABLE IF NOT EXISTS document_embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		model TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(filename, model)
	);
	`

	for _, table := range []string{metrosTable, historyTable, embeddingsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ========== Scored metros ==========

// SaveScores upserts the scored snapshot, one row per metro.
func (s *Store) SaveScores(scored []scoring.Scored) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO metros (
			name, code, total_population, median_income, median_home_value,
			bachelors_degree, public_transportation, unemployment_rate,
			unemployment_change_1yr, diversity_score, top_industry_share,
			employment_stability_score, diversity_component_score,
			income_resilience_score, human_capital_score,
			resilience_score, resilience_category, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			code = excluded.code,
			total_population = excluded.total_population,
			median_income = excluded.median_income,
			median_home_value = excluded.median_home_value,
			bachelors_degree = excluded.bachelors_degree,
			public_transportation = excluded.public_transportation,
			unemployment_rate = excluded.unemployment_rate,
			unemployment_change_1yr = excluded.unemployment_change_1yr,
			diversity_score = excluded.diversity_score,
			top_industry_share = excluded.top_industry_share,
			employment_stability_score = excluded.employment_stability_score,
			diversity_component_score = excluded.diversity_component_score,
			income_resilience_score = excluded.income_resilience_score,
			human_capital_score = excluded.human_capital_score,
			resilience_score = excluded.resilience_score,
			resilience_category = excluded.resilience_category,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range scored {
		_, err := stmt.Exec(
			m.Name, m.Code,
			nullFloat(m.TotalPopulation), nullFloat(m.MedianIncome), nullFloat(m.MedianHomeValue),
			nullFloat(m.BachelorsDegree), nullFloat(m.PublicTransportation), nullFloat(m.UnemploymentRate),
			nullFloat(m.UnemploymentChange1Y), nullFloat(m.DiversityScore), nullFloat(m.TopIndustryShare),
			m.EmploymentStability, m.Diversity, m.IncomeResilience, m.HumanCapital,
			m.Resilience, m.Category,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert metro %q: %w", m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Store("saved %d scored metros", len(scored))
	return nil
}

// LoadScores returns every scored metro ordered by resilience score, best
// first. Missing indicators come back as NaN.
func (s *Store) LoadScores() ([]scoring.Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT name, code, total_population, median_income, median_home_value,
			bachelors_degree, public_transportation, unemployment_rate,
			unemployment_change_1yr, diversity_score, top_industry_share,
			employment_stability_score, diversity_component_score,
			income_resilience_score, human_capital_score,
			resilience_score, resilience_category
		FROM metros
		ORDER BY resilience_score DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []scoring.Scored
	for rows.Next() {
		var m scoring.Scored
		var pop, income, home, degree, transit, unemp, change, div, share sql.NullFloat64
		if err := rows.Scan(
			&m.Name, &m.Code, &pop, &income, &home, &degree, &transit, &unemp,
			&change, &div, &share,
			&m.EmploymentStability, &m.Diversity, &m.IncomeResilience, &m.HumanCapital,
			&m.Resilience, &m.Category,
		); err != nil {
			return nil, err
		}
		m.TotalPopulation = floatOrNaN(pop)
		m.MedianIncome = floatOrNaN(income)
		m.MedianHomeValue = floatOrNaN(home)
		m.BachelorsDegree = floatOrNaN(degree)
		m.PublicTransportation = floatOrNaN(transit)
		m.UnemploymentRate = floatOrNaN(unemp)
		m.UnemploymentChange1Y = floatOrNaN(change)
		m.DiversityScore = floatOrNaN(div)
		m.TopIndustryShare = floatOrNaN(share)
		scored = append(scored, m)
	}

	return scored, rows.Err()
}

func nullFloat(v float64) interface{} {
	if dataset.Missing(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// ========== Query history ==========

// QueryRecord is one answered dashboard question.
type QueryRecord struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	Response   string    `json:"response"`
	Sources    []string  `json:"sources"`
	Model      string    `json:"model"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordQuery appends a query to the history.
func (s *Store) RecordQuery(rec QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sourcesJSON, _ := json.Marshal(rec.Sources)

	_, err := s.db.Exec(
		`INSERT INTO query_history (query, response, sources, model, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		rec.Query, rec.Response, string(sourcesJSON), rec.Model, rec.DurationMs,
	)
	return err
}

// RecentQueries returns the newest history entries, newest first.
func (s *Store) RecentQueries(limit int) ([]QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, query, response, sources, model, duration_ms, created_at
		 FROM query_history
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var sourcesJSON string
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Response, &sourcesJSON, &rec.Model, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if sourcesJSON != "" {
			json.Unmarshal([]byte(sourcesJSON), &rec.Sources)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ========== Document embeddings ==========

// SaveEmbedding stores a document embedding as a little-endian float32 blob.
func (s *Store) SaveEmbedding(filename, model string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}

	_, err := s.db.Exec(
		`INSERT INTO document_embeddings (filename, model, dims, vector, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(filename, model) DO UPDATE SET
			dims = excluded.dims,
			vector = excluded.vector,
			updated_at = CURRENT_TIMESTAMP`,
		filename, model, len(vector), blob,
	)
	return err
}

// LoadEmbeddings returns all stored embeddings for a model, keyed by filename.
func (s *Store) LoadEmbeddings(model string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT filename, dims, vector FROM document_embeddings WHERE model = ?`,
		model,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	embeddings := make(map[string][]float32)
	for rows.Next() {
		var filename string
		var dims int
		var blob []byte
		if err := rows.Scan(&filename, &dims, &blob); err != nil {
			return nil, err
		}
		if len(blob) != 4*dims {
			return nil, fmt.Errorf("embedding blob for %q has %d bytes, want %d", filename, len(blob), 4*dims)
		}
		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
		}
		embeddings[filename] = vec
	}

	return embeddings, rows.Err()
}

// DeleteEmbedding removes a document's embedding for every model.
func (s *Store) DeleteEmbedding(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM document_embeddings WHERE filename = ?`, filename)
	return err
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"metros", "query_history", "document_embeddings"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}

	return stats, nil
}
