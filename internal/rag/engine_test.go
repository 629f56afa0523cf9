package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropulse/internal/corpus"
	"metropulse/internal/embedding"
	"metropulse/internal/retrieval"
	"metropulse/internal/usage"
)

// fakeClient returns canned completions and records the prompts it saw.
type fakeClient struct {
	response string
	err      error
	system   string
	prompt   string
	calls    int
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.system = systemPrompt
	f.prompt = userPrompt
	return f.response, f.err
}

func (f *fakeClient) Model() string { return "fake-model" }

func newTestSearcher(t *testing.T, docs map[string]string) *retrieval.Searcher {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	c, err := corpus.New(dir)
	require.NoError(t, err)
	return retrieval.NewSearcher(c, retrieval.DefaultConfig(), nil)
}

func TestAnswerGroundsPromptInDocuments(t *testing.T) {
	searcher := newTestSearcher(t, map[string]string{
		"workforce_development.txt": "Workforce development programs train workers and reduce unemployment across the region.",
	})
	client := &fakeClient{response: "Invest in workforce training."}
	engine := NewEngine(searcher, client, nil, "openai", 800)

	ans := engine.Answer(context.Background(), "How does workforce development improve resilience?")

	assert.Equal(t, "Invest in workforce training.", ans.Response)
	assert.Equal(t, []string{"Workforce Development"}, ans.Sources)
	assert.Equal(t, systemPrompt, client.system)
	assert.Contains(t, client.prompt, "Document 1: Workforce Development")
	assert.Contains(t, client.prompt, "Question: How does workforce development improve resilience?")
	assert.Contains(t, client.prompt, "Based on the following policy documents:")
}

func TestAnswerNoRelevantDocumentsSkipsLLM(t *testing.T) {
	searcher := newTestSearcher(t, map[string]string{
		"housing_policy.txt": "Affordable housing policy stabilizes neighborhoods.",
	})
	client := &fakeClient{response: "should not be called"}
	engine := NewEngine(searcher, client, nil, "openai", 800)

	ans := engine.Answer(context.Background(), "quantum chromodynamics lattice")

	assert.Equal(t, noDocumentsReply, ans.Response)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.Equal(t, 0, client.calls)
}

func TestAnswerLLMFailureKeepsSources(t *testing.T) {
	searcher := newTestSearcher(t, map[string]string{
		"housing_policy.txt": "Affordable housing policy stabilizes neighborhoods and expands housing supply.",
	})
	client := &fakeClient{err: fmt.Errorf("rate limit exceeded")}
	engine := NewEngine(searcher, client, nil, "openai", 800)

	ans := engine.Answer(context.Background(), "How does housing policy help?")

	assert.Equal(t, llmFailureReply, ans.Response)
	assert.Equal(t, []string{"Housing Policy"}, ans.Sources)
}

func TestAnswerTruncatesLongDocuments(t *testing.T) {
	long := "transit investment " + strings.Repeat("connects workers to jobs ", 100)
	searcher := newTestSearcher(t, map[string]string{
		"transit_plan.txt": long,
	})
	client := &fakeClient{response: "ok"}
	engine := NewEngine(searcher, client, nil, "openai", 800)

	engine.Answer(context.Background(), "transit investment jobs")

	start := strings.Index(client.prompt, "Document 1:")
	end := strings.Index(client.prompt, "Question:")
	require.True(t, start >= 0 && end > start)
	excerpt := client.prompt[start:end]
	assert.Less(t, len(excerpt), 900)
	assert.Contains(t, excerpt, "...")
}

// fakeDense serves canned embedding neighbors.
type fakeDense struct {
	neighbors []embedding.Neighbor
	err       error
	calls     int
}

func (f *fakeDense) Nearest(ctx context.Context, query string, k int) ([]embedding.Neighbor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors, nil
}

func TestAnswerBlendsDenseRanking(t *testing.T) {
	// Identical content ties the TF-IDF scores, so alphabetical order
	// would put Rural first. The dense ranker breaks the tie.
	content := "Growth policy supports regional jobs and investment."
	searcher := newTestSearcher(t, map[string]string{
		"rural_growth.txt": content,
		"urban_growth.txt": content,
	})
	client := &fakeClient{response: "ok"}
	engine := NewEngine(searcher, client, nil, "gemini", 800)
	engine.AttachDense(&fakeDense{neighbors: []embedding.Neighbor{
		{Filename: "urban_growth.txt", Similarity: 1.0},
		{Filename: "rural_growth.txt", Similarity: 0.1},
	}})

	ans := engine.Answer(context.Background(), "growth policy jobs")

	require.Len(t, ans.Sources, 2)
	assert.Equal(t, []string{"Urban Growth", "Rural Growth"}, ans.Sources)
}

func TestAnswerDenseRescuesUnmatchedDocument(t *testing.T) {
	// Zoning Reform shares no terms with the query, so TF-IDF alone
	// never surfaces it; its embedding similarity pulls it in.
	searcher := newTestSearcher(t, map[string]string{
		"housing_policy.txt": "Affordable housing policy stabilizes neighborhoods.",
		"zoning_reform.txt":  "Parcel consolidation guidelines for municipal boards.",
	})
	client := &fakeClient{response: "ok"}
	engine := NewEngine(searcher, client, nil, "gemini", 800)
	engine.AttachDense(&fakeDense{neighbors: []embedding.Neighbor{
		{Filename: "zoning_reform.txt", Similarity: 0.95},
	}})

	ans := engine.Answer(context.Background(), "How does housing policy help?")

	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "Housing Policy", ans.Sources[0])
	assert.Contains(t, ans.Sources, "Zoning Reform")
}

func TestAnswerDenseFailureFallsBackToSparse(t *testing.T) {
	searcher := newTestSearcher(t, map[string]string{
		"housing_policy.txt": "Affordable housing policy stabilizes neighborhoods.",
	})
	client := &fakeClient{response: "ok"}
	engine := NewEngine(searcher, client, nil, "gemini", 800)
	dense := &fakeDense{err: fmt.Errorf("embedding quota exhausted")}
	engine.AttachDense(dense)

	ans := engine.Answer(context.Background(), "How does housing policy help?")

	assert.Equal(t, 1, dense.calls)
	assert.Equal(t, "ok", ans.Response)
	assert.Equal(t, []string{"Housing Policy"}, ans.Sources)
}

func TestTruncateSnippetKeepsRunesIntact(t *testing.T) {
	got := truncateSnippet(strings.Repeat("é", 20), 9)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 4), got)

	assert.Equal(t, "ascii", truncateSnippet("ascii", 10))
	assert.Equal(t, "abc", truncateSnippet("abcdef", 3))
}

func TestAnswerPromptStaysValidUTF8(t *testing.T) {
	// "trade policy " is 13 bytes, so the 100-byte cut lands inside one
	// of the two-byte runes that follow.
	searcher := newTestSearcher(t, map[string]string{
		"trade_policy.txt": "trade policy " + strings.Repeat("é", 200),
	})
	client := &fakeClient{response: "ok"}
	engine := NewEngine(searcher, client, nil, "openai", 100)

	engine.Answer(context.Background(), "trade policy")

	assert.True(t, utf8.ValidString(client.prompt))
}

func TestAnswerTracksUsage(t *testing.T) {
	searcher := newTestSearcher(t, map[string]string{
		"housing_policy.txt": "Affordable housing policy stabilizes neighborhoods and expands housing supply.",
	})
	tracker, err := usage.NewTracker(t.TempDir())
	require.NoError(t, err)

	client := &fakeClient{response: strings.Repeat("word ", 40)}
	engine := NewEngine(searcher, client, tracker, "openai", 800)
	engine.Answer(context.Background(), "How does housing policy help?")

	stats := tracker.Stats()
	assert.Greater(t, stats.Total.Total, int64(0))
	assert.Contains(t, stats.ByModel, "fake-model")
	assert.Contains(t, stats.ByOperation, "query")
}

func TestSampleQueries(t *testing.T) {
	queries := SampleQueries()
	assert.Len(t, queries, 7)
	for _, q := range queries {
		assert.NotEmpty(t, q)
	}
}
