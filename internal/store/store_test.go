package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropulse/internal/dataset"
	"metropulse/internal/scoring"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleScored(name string, score float64) scoring.Scored {
	return scoring.Scored{
		Metro: dataset.Metro{
			Name:             name,
			Code:             "12345",
			TotalPopulation:  1000000,
			MedianIncome:     65000,
			UnemploymentRate: 4.5,
			DiversityScore:   70,
		},
		EmploymentStability: 80,
		Diversity:           70,
		IncomeResilience:    60,
		HumanCapital:        50,
		Resilience:          score,
		Category:            scoring.Categorize(score),
	}
}

func TestSaveAndLoadScores(t *testing.T) {
	s := newTestStore(t)

	scored := []scoring.Scored{
		sampleScored("Austin-Round Rock, TX", 82.5),
		sampleScored("Cleveland-Elyria, OH", 55.1),
	}
	require.NoError(t, s.SaveScores(scored))

	loaded, err := s.LoadScores()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Ordered best first.
	assert.Equal(t, "Austin-Round Rock, TX", loaded[0].Name)
	assert.InDelta(t, 82.5, loaded[0].Resilience, 1e-9)
	assert.Equal(t, "Very High", loaded[0].Category)
	assert.InDelta(t, 65000, loaded[0].MedianIncome, 1e-9)
}

func TestSaveScoresUpserts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveScores([]scoring.Scored{sampleScored("Austin-Round Rock, TX", 82.5)}))
	require.NoError(t, s.SaveScores([]scoring.Scored{sampleScored("Austin-Round Rock, TX", 79.0)}))

	loaded, err := s.LoadScores()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.InDelta(t, 79.0, loaded[0].Resilience, 1e-9)
}

func TestScoresRoundTripMissingValues(t *testing.T) {
	s := newTestStore(t)

	m := sampleScored("Austin-Round Rock, TX", 82.5)
	m.MedianHomeValue = math.NaN()
	require.NoError(t, s.SaveScores([]scoring.Scored{m}))

	loaded, err := s.LoadScores()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, math.IsNaN(loaded[0].MedianHomeValue))
}

func TestQueryHistory(t *testing.T) {
	s := newTestStore(t)

	for i, q := range []string{"first question", "second question", "third question"} {
		require.NoError(t, s.RecordQuery(QueryRecord{
			Query:      q,
			Response:   "an answer",
			Sources:    []string{"Workforce Development"},
			Model:      "gpt-4o-mini",
			DurationMs: int64(100 + i),
		}))
	}

	records, err := s.RecentQueries(2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "third question", records[0].Query)
	assert.Equal(t, "second question", records[1].Query)
	assert.Equal(t, []string{"Workforce Development"}, records[0].Sources)
	assert.False(t, records[0].CreatedAt.IsZero())
}

func TestRecentQueriesDefaultLimit(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordQuery(QueryRecord{Query: "q", Response: "a"}))

	records, err := s.RecentQueries(0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	vec := []float32{0.1, -0.5, 2.25}
	require.NoError(t, s.SaveEmbedding("workforce_development.txt", "gemini-embedding-001", vec))

	embeddings, err := s.LoadEmbeddings("gemini-embedding-001")
	require.NoError(t, err)
	require.Contains(t, embeddings, "workforce_development.txt")
	assert.Equal(t, vec, embeddings["workforce_development.txt"])

	// Upsert replaces the stored vector.
	require.NoError(t, s.SaveEmbedding("workforce_development.txt", "gemini-embedding-001", []float32{1, 2}))
	embeddings, err = s.LoadEmbeddings("gemini-embedding-001")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, embeddings["workforce_development.txt"])

	require.NoError(t, s.DeleteEmbedding("workforce_development.txt"))
	embeddings, err = s.LoadEmbeddings("gemini-embedding-001")
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveScores([]scoring.Scored{sampleScored("Austin-Round Rock, TX", 82.5)}))
	require.NoError(t, s.RecordQuery(QueryRecord{Query: "q"}))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["metros"])
	assert.Equal(t, int64(1), stats["query_history"])
	assert.Equal(t, int64(0), stats["document_embeddings"])
}
