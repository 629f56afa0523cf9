// Package retrieval ranks policy documents against free-text questions
// using TF-IDF vectors and cosine similarity. The corpus is a handful of
// documents, so the index is rebuilt in full whenever the corpus changes;
// no incremental update is needed.
package retrieval

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"metropulse/internal/corpus"
	"metropulse/internal/logging"
)

// =============================================================================
// TF-IDF INDEX
// =============================================================================

// Index is a fitted TF-IDF vectorizer plus the document vectors. Immutable
// after Fit; swap the whole index to pick up corpus changes.
type Index struct {
	vocab   map[string]int // term -> column
	idf     []float64      // per-column inverse document frequency
	vectors [][]float64    // l2-normalized document vectors
	docs    []corpus.Document
}

// Config holds vectorizer settings.
type Config struct {
	MaxFeatures   int     // Vocabulary cap, most frequent terms win
	TopK          int     // Default result count
	MinSimilarity float64 // Results below this cosine are dropped
}

// DefaultConfig returns the standard vectorizer settings.
func DefaultConfig() Config {
	return Config{
		MaxFeatures:   1000,
		TopK:          3,
		MinSimilarity: 0.1,
	}
}

// Hit is one ranked retrieval result.
type Hit struct {
	Document   corpus.Document
	Similarity float64
}

// Fit builds an index over the given documents.
func Fit(docs []corpus.Document, cfg Config) *Index {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = 1000
	}

	timer := logging.StartTimer(logging.CategoryRetrieval, "fit")
	defer timer.Stop()

	// Count terms per document and corpus-wide.
	docTerms := make([]map[string]int, len(docs))
	corpusCounts := make(map[string]int)
	docFreq := make(map[string]int)
	for i, d := range docs {
		counts := make(map[string]int)
		for _, tok := range Tokenize(d.Content) {
			counts[tok]++
		}
		docTerms[i] = counts
		for term, n := range counts {
			corpusCounts[term] += n
			docFreq[term]++
		}
	}

	// Vocabulary: the MaxFeatures most frequent terms across the corpus,
	// ties broken alphabetically so the index is deterministic.
	terms := make([]string, 0, len(corpusCounts))
	for t := range corpusCounts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if corpusCounts[terms[i]] != corpusCounts[terms[j]] {
			return corpusCounts[terms[i]] > corpusCounts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > cfg.MaxFeatures {
		terms = terms[:cfg.MaxFeatures]
	}
	sort.Strings(terms)

	idx := &Index{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
		docs:  docs,
	}
	n := float64(len(docs))
	for col, term := range terms {
		idx.vocab[term] = col
		// Smooth idf: every term behaves as if seen in one extra document,
		// so no division by zero and unseen-everywhere terms stay finite.
		idx.idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	idx.vectors = make([][]float64, len(docs))
	for i := range docs {
		idx.vectors[i] = idx.vectorize(docTerms[i])
	}

	logging.Retrieval("fit: %d documents, %d features", len(docs), len(terms))
	return idx
}

// vectorize builds an l2-normalized tf-idf vector from term counts.
func (idx *Index) vectorize(counts map[string]int) []float64 {
	vec := make([]float64, len(idx.idf))
	for term, n := range counts {
		col, ok := idx.vocab[term]
		if !ok {
			continue
		}
		vec[col] = float64(n) * idx.idf[col]
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Search ranks documents against the query. Returns at most k hits with
// cosine similarity of at least minSim, best first.
func (idx *Index) Search(query string, k int, minSim float64) []Hit {
	if idx == nil || len(idx.docs) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, tok := range Tokenize(query) {
		counts[tok]++
	}
	qvec := idx.vectorize(counts)

	hits := make([]Hit, 0, len(idx.docs))
	for i, dvec := range idx.vectors {
		sim := dot(qvec, dvec)
		if sim > minSim {
			hits = append(hits, Hit{Document: idx.docs[i], Similarity: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	logging.RetrievalDebug("search: %d hits for query of %d terms", len(hits), len(counts))
	return hits
}

// Features returns the fitted vocabulary size.
func (idx *Index) Features() int {
	return len(idx.vocab)
}

// Tokenize lowercases, splits on non-alphanumerics, and drops stop words
// and single-character tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || englishStopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// =============================================================================
// SEARCHER - index + cache behind a mutex, rebuilt on corpus changes
// =============================================================================

// Searcher wraps an Index with a result cache and supports atomically
// rebuilding the index when the corpus reloads.
type Searcher struct {
	cfg   Config
	cache *ResultCache

	mu  sync.RWMutex
	idx *Index
}

// NewSearcher fits an index over the corpus and wraps it with a cache.
func NewSearcher(c *corpus.Corpus, cfg Config, cache *ResultCache) *Searcher {
	return &Searcher{
		cfg:   cfg,
		cache: cache,
		idx:   Fit(c.Documents(), cfg),
	}
}

// Rebuild refits the index over the corpus's current documents and drops
// cached results.
func (s *Searcher) Rebuild(c *corpus.Corpus) {
	idx := Fit(c.Documents(), s.cfg)
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Clear()
	}
	logging.Retrieval("index rebuilt: %d documents", len(idx.docs))
}

// Search ranks documents for the query, consulting the cache first.
func (s *Searcher) Search(query string, k int) []Hit {
	if k <= 0 {
		k = s.cfg.TopK
	}

	if s.cache != nil {
		if hits, ok := s.cache.Get(query, k); ok {
			return hits
		}
	}

	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()

	hits := idx.Search(query, k, s.cfg.MinSimilarity)
	if s.cache != nil {
		s.cache.Set(query, k, hits)
	}
	return hits
}

// Documents returns the number of indexed documents.
func (s *Searcher) Documents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idx.docs)
}

// Document looks up an indexed document by filename.
func (s *Searcher) Document(filename string) (corpus.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.idx.docs {
		if d.Filename == filename {
			return d, true
		}
	}
	return corpus.Document{}, false
}

// TopK returns the configured default result count.
func (s *Searcher) TopK() int {
	return s.cfg.TopK
}
