package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropulse/internal/corpus"
	"metropulse/internal/store"
)

// fakeEngine returns a fixed-direction vector per text length.
type fakeEngine struct {
	calls int
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), 1, 0}
	}
	return vecs, nil
}

func (f *fakeEngine) Dimensions() int { return 3 }
func (f *fakeEngine) Name() string    { return "fake:test" }

func newSyncFixture(t *testing.T, docs map[string]string) (*corpus.Corpus, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	c, err := corpus.New(dir)
	require.NoError(t, err)

	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return c, s
}

func TestSyncEmbedsAndPersists(t *testing.T) {
	c, s := newSyncFixture(t, map[string]string{
		"workforce_development.txt": "Workforce development programs train workers.",
		"housing_policy.txt":        "Affordable housing policy stabilizes neighborhoods.",
	})
	engine := &fakeEngine{}

	n, err := Sync(context.Background(), engine, c, s, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := s.LoadEmbeddings("fake:test")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Contains(t, stored, "workforce_development.txt")
}

func TestSyncSkipsAlreadyEmbedded(t *testing.T) {
	c, s := newSyncFixture(t, map[string]string{
		"workforce_development.txt": "Workforce development programs train workers.",
	})
	engine := &fakeEngine{}

	n, err := Sync(context.Background(), engine, c, s, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = Sync(context.Background(), engine, c, s, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, engine.calls)
}

func TestSyncForceReembeds(t *testing.T) {
	c, s := newSyncFixture(t, map[string]string{
		"workforce_development.txt": "Workforce development programs train workers.",
	})
	engine := &fakeEngine{}

	_, err := Sync(context.Background(), engine, c, s, false)
	require.NoError(t, err)

	n, err := Sync(context.Background(), engine, c, s, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, engine.calls)
}

func TestNearestRanksStoredVectors(t *testing.T) {
	_, s := newSyncFixture(t, nil)
	engine := &fakeEngine{}

	// Query "x" embeds to [1, 1, 0] under the fake engine.
	require.NoError(t, s.SaveEmbedding("aligned.txt", "fake:test", []float32{1, 1, 0}))
	require.NoError(t, s.SaveEmbedding("partial.txt", "fake:test", []float32{0, 1, 0}))
	require.NoError(t, s.SaveEmbedding("opposite.txt", "fake:test", []float32{-1, -1, 0}))

	neighbors, err := Nearest(context.Background(), engine, s, "x", 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "aligned.txt", neighbors[0].Filename)
	assert.Equal(t, "partial.txt", neighbors[1].Filename)
	assert.Greater(t, neighbors[0].Similarity, neighbors[1].Similarity)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9,
				fmt.Sprintf("cosine(%v, %v)", tt.a, tt.b))
		})
	}
}
