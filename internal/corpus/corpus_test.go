package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadsTxtFilesOnly(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "economic_diversification.txt", "Diversifying regional economies...")
	writeDoc(t, dir, "workforce_development.txt", "Workforce training programs...")
	writeDoc(t, dir, "notes.md", "should be ignored")

	c, err := New(dir)
	require.NoError(t, err)

	docs := c.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "economic_diversification.txt", docs[0].Filename)
	assert.Equal(t, "Economic Diversification", docs[0].Title)
	assert.Equal(t, "Workforce Development", docs[1].Title)
}

func TestMissingDirectoryYieldsEmptyCorpus(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "alpha")

	c, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	writeDoc(t, dir, "b.txt", "beta")
	require.NoError(t, c.Reload())
	assert.Equal(t, 2, c.Len())
}

func TestTitleFromFilename(t *testing.T) {
	cases := map[string]string{
		"economic_diversification.txt": "Economic Diversification",
		"rural_development_policy.txt": "Rural Development Policy",
		"infrastructure.txt":           "Infrastructure",
		"small_business_access_to.txt": "Small Business Access To",
	}
	for in, want := range cases {
		assert.Equal(t, want, TitleFromFilename(in), in)
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "alpha")

	c, err := New(dir)
	require.NoError(t, err)

	var reloads atomic.Int32
	w, err := NewWatcher(c, func() { reloads.Add(1) })
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeDoc(t, dir, "b.txt", "beta")

	require.Eventually(t, func() bool {
		return reloads.Load() >= 1 && c.Len() == 2
	}, 3*time.Second, 20*time.Millisecond)
}
