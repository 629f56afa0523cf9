// Package rag answers natural-language policy questions by grounding an
// LLM completion in documents retrieved from the policy corpus.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"metropulse/internal/embedding"
	"metropulse/internal/llm"
	"metropulse/internal/logging"
	"metropulse/internal/retrieval"
	"metropulse/internal/usage"
)

const systemPrompt = "You are an expert in regional economic policy and development."

const (
	noDocumentsReply = "I couldn't find relevant policy documents to answer your question."
	llmFailureReply  = "I encountered an error while generating a response. Please try again."
)

// Answer is a grounded response with the titles of the documents it cites.
type Answer struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// Weights for combining TF-IDF and embedding similarities when a dense
// ranker is attached.
const (
	sparseBlendWeight = 0.7
	denseBlendWeight  = 0.3
)

// DenseRanker ranks corpus documents by embedding similarity to a query.
type DenseRanker interface {
	Nearest(ctx context.Context, query string, k int) ([]embedding.Neighbor, error)
}

// Engine ties the searcher and an LLM client into the answering pipeline.
type Engine struct {
	searcher     *retrieval.Searcher
	client       llm.Client
	tracker      *usage.Tracker
	dense        DenseRanker
	provider     string
	snippetChars int
}

// NewEngine builds an answering engine. The tracker may be nil.
func NewEngine(searcher *retrieval.Searcher, client llm.Client, tracker *usage.Tracker, provider string, snippetChars int) *Engine {
	if snippetChars <= 0 {
		snippetChars = 800
	}
	return &Engine{
		searcher:     searcher,
		client:       client,
		tracker:      tracker,
		provider:     provider,
		snippetChars: snippetChars,
	}
}

// AttachDense adds an embedding ranker whose similarities are blended with
// the TF-IDF scores during retrieval.
func (e *Engine) AttachDense(r DenseRanker) {
	e.dense = r
}

// Answer retrieves relevant documents, prompts the LLM with their excerpts,
// and returns the grounded answer. Retrieval and LLM failures both degrade
// to a canned reply rather than an error so the dashboard always answers.
func (e *Engine) Answer(ctx context.Context, query string) Answer {
	start := time.Now()
	logging.RAG("answer: query_len=%d", len(query))
	logging.Audit().Record(logging.AuditEvent{
		EventType: logging.AuditQueryReceived,
		Query:     query,
	})

	hits := e.retrieve(ctx, query)
	if len(hits) == 0 {
		logging.RAGDebug("answer: no documents above similarity floor")
		logging.Audit().Record(logging.AuditEvent{
			EventType:  logging.AuditQueryAnswered,
			Query:      query,
			Success:    true,
			DurationMs: time.Since(start).Milliseconds(),
		})
		return Answer{Response: noDocumentsReply, Sources: []string{}}
	}

	prompt, sources := e.buildPrompt(query, hits)

	logging.Audit().Record(logging.AuditEvent{
		EventType: logging.AuditLLMRequest,
		Model:     e.client.Model(),
		Sources:   sources,
	})

	response, err := e.client.CompleteWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		logging.RAGError("answer: completion failed: %v", err)
		logging.Audit().Record(logging.AuditEvent{
			EventType: logging.AuditLLMError,
			Model:     e.client.Model(),
			Query:     query,
		})
		return Answer{Response: llmFailureReply, Sources: sources}
	}

	if e.tracker != nil {
		// The chat API reports usage per call but the client interface only
		// surfaces text, so approximate at four characters per token.
		e.tracker.Track(e.provider, e.client.Model(), len(prompt)/4, len(response)/4, "query")
	}

	logging.RAG("answer: completed in %v sources=%d", time.Since(start), len(sources))
	logging.Audit().Record(logging.AuditEvent{
		EventType:  logging.AuditQueryAnswered,
		Query:      query,
		Model:      e.client.Model(),
		Sources:    sources,
		Success:    true,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return Answer{Response: response, Sources: sources}
}

// retrieve ranks documents for the query. Without a dense ranker the
// TF-IDF searcher ranks alone; with one, both rankings are computed over a
// widened candidate pool and their similarities blended 70/30 before the
// final cut.
func (e *Engine) retrieve(ctx context.Context, query string) []retrieval.Hit {
	if e.dense == nil {
		return e.searcher.Search(query, 0)
	}

	topK := e.searcher.TopK()
	sparse := e.searcher.Search(query, 2*topK)

	neighbors, err := e.dense.Nearest(ctx, query, 2*topK)
	if err != nil {
		// Dense ranking is best-effort; fall back to TF-IDF alone.
		logging.RAGDebug("retrieve: dense ranking unavailable: %v", err)
		if len(sparse) > topK {
			sparse = sparse[:topK]
		}
		return sparse
	}

	blended := make(map[string]retrieval.Hit, len(sparse)+len(neighbors))
	for _, h := range sparse {
		h.Similarity *= sparseBlendWeight
		blended[h.Document.Filename] = h
	}
	for _, n := range neighbors {
		if h, ok := blended[n.Filename]; ok {
			h.Similarity += denseBlendWeight * n.Similarity
			blended[n.Filename] = h
			continue
		}
		doc, ok := e.searcher.Document(n.Filename)
		if !ok {
			continue
		}
		blended[n.Filename] = retrieval.Hit{
			Document:   doc,
			Similarity: denseBlendWeight * n.Similarity,
		}
	}

	hits := make([]retrieval.Hit, 0, len(blended))
	for _, h := range blended {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Document.Title < hits[j].Document.Title
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// buildPrompt assembles the numbered document excerpts and the question.
func (e *Engine) buildPrompt(query string, hits []retrieval.Hit) (string, []string) {
	var b strings.Builder
	b.WriteString("You are a policy expert analyzing regional economic resilience.\n\n")
	b.WriteString("Based on the following policy documents:\n\n")

	sources := make([]string, 0, len(hits))
	for i, hit := range hits {
		content := truncateSnippet(hit.Document.Content, e.snippetChars)
		fmt.Fprintf(&b, "Document %d: %s\n%s...\n\n", i+1, hit.Document.Title, content)
		sources = append(sources, hit.Document.Title)
	}

	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Please provide a comprehensive answer based on the policy documents above. ")
	b.WriteString("Focus on practical recommendations and cite specific policies or strategies mentioned in the documents. ")
	b.WriteString("Keep your response concise but informative.")

	return b.String(), sources
}

// truncateSnippet cuts s to at most max bytes without splitting a rune.
func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Stats reports aggregated LLM token usage. Zero value when no tracker
// is attached.
func (e *Engine) Stats() usage.AggregatedStats {
	if e.tracker == nil {
		return usage.AggregatedStats{}
	}
	return e.tracker.Stats()
}

// SampleQueries returns starter questions for the dashboard.
func SampleQueries() []string {
	return []string{
		"What strategies promote economic diversification in regions?",
		"How can manufacturing contribute to regional resilience?",
		"What are the main challenges for rural economic development?",
		"How do urban areas build economic resilience?",
		"What role does workforce development play in regional resilience?",
		"How can regions improve access to capital for small businesses?",
		"What infrastructure investments support economic competitiveness?",
	}
}
