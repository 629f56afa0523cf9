// Package corpus loads the policy document collection that backs the
// retrieval-augmented answer path. Documents are plain .txt files; the
// corpus is small enough to reload and re-vectorize wholesale whenever
// anything changes on disk.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"metropulse/internal/logging"
)

// Document is one policy text.
type Document struct {
	Filename string // e.g. economic_diversification.txt
	Title    string // e.g. Economic Diversification
	Content  string
}

// Corpus holds the loaded document set. Safe for concurrent readers; Reload
// swaps the set atomically.
type Corpus struct {
	dir string

	mu   sync.RWMutex
	docs []Document
}

// New creates a corpus over dir and performs the initial load.
// A missing directory is not an error: the corpus is just empty.
func New(dir string) (*Corpus, error) {
	c := &Corpus{dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the directory the corpus loads from.
func (c *Corpus) Dir() string {
	return c.dir
}

// Reload re-reads every .txt file in the corpus directory. Individual
// unreadable files are logged and skipped.
func (c *Corpus) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.CorpusWarn("documents path %s not found", c.dir)
			c.mu.Lock()
			c.docs = nil
			c.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read corpus dir %s: %w", c.dir, err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			logging.CorpusWarn("error loading %s: %v", e.Name(), err)
			continue
		}
		docs = append(docs, Document{
			Filename: e.Name(),
			Title:    TitleFromFilename(e.Name()),
			Content:  string(content),
		})
		logging.Corpus("loaded document: %s", e.Name())
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })

	c.mu.Lock()
	c.docs = docs
	c.mu.Unlock()

	logging.Corpus("corpus loaded: %d documents from %s", len(docs), c.dir)
	return nil
}

// Documents returns the current document set (shared slice; callers must
// not mutate).
func (c *Corpus) Documents() []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs
}

// Len returns the number of loaded documents.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// TitleFromFilename derives a display title: strip the extension, replace
// underscores with spaces, title-case each word.
func TitleFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	words := strings.Fields(strings.ReplaceAll(base, "_", " "))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
