// Package embedding generates dense vectors for policy documents so the
// corpus can be searched semantically alongside the term-based index.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"metropulse/internal/corpus"
	"metropulse/internal/logging"
	"metropulse/internal/store"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Sync embeds every corpus document not yet stored for the engine's model
// and persists the vectors. With force set, all documents are re-embedded.
// Returns the number of documents embedded.
func Sync(ctx context.Context, engine Engine, c *corpus.Corpus, s *store.Store, force bool) (int, error) {
	existing := map[string][]float32{}
	if !force {
		var err error
		existing, err = s.LoadEmbeddings(engine.Name())
		if err != nil {
			return 0, fmt.Errorf("failed to load stored embeddings: %w", err)
		}
	}

	var pending []corpus.Document
	for _, doc := range c.Documents() {
		if _, ok := existing[doc.Filename]; ok {
			continue
		}
		pending = append(pending, doc)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, doc := range pending {
		texts[i] = doc.Content
	}

	vectors, err := engine.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(pending) {
		return 0, fmt.Errorf("embedded %d documents, expected %d", len(vectors), len(pending))
	}

	for i, doc := range pending {
		if err := s.SaveEmbedding(doc.Filename, engine.Name(), vectors[i]); err != nil {
			return i, fmt.Errorf("failed to store embedding for %s: %w", doc.Filename, err)
		}
	}

	logging.Corpus("embedded %d documents with %s", len(pending), engine.Name())
	return len(pending), nil
}

// Ranker binds an embedding engine to the store so callers can rank the
// corpus against ad-hoc queries.
type Ranker struct {
	engine Engine
	store  *store.Store
}

// NewRanker returns a Ranker over the engine's stored vectors.
func NewRanker(engine Engine, s *store.Store) *Ranker {
	return &Ranker{engine: engine, store: s}
}

// Nearest ranks the stored vectors against the query, best match first.
func (r *Ranker) Nearest(ctx context.Context, query string, k int) ([]Neighbor, error) {
	return Nearest(ctx, r.engine, r.store, query, k)
}

// Neighbor is a stored document ranked by dense similarity to a query.
type Neighbor struct {
	Filename   string
	Similarity float64
}

// Nearest embeds the query and ranks the stored vectors for the engine's
// model, best match first.
func Nearest(ctx context.Context, engine Engine, s *store.Store, query string, k int) ([]Neighbor, error) {
	qv, err := engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	stored, err := s.LoadEmbeddings(engine.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to load stored embeddings: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(stored))
	for filename, vec := range stored {
		neighbors = append(neighbors, Neighbor{
			Filename:   filename,
			Similarity: CosineSimilarity(qv, vec),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].Filename < neighbors[j].Filename
	})
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}
