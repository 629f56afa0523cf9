package corpus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"metropulse/internal/logging"
)

// Watcher reloads the corpus when .txt files change on disk and notifies a
// callback so downstream indexes can rebuild. Events are debounced: editors
// tend to fire several writes per save.
type Watcher struct {
	corpus   *Corpus
	watcher  *fsnotify.Watcher
	onReload func()

	mu          sync.Mutex
	debounceDur time.Duration
	pending     *time.Timer
	running     bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher for the given corpus. onReload runs after
// every successful reload (may be nil).
func NewWatcher(c *Corpus, onReload func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		corpus:      c,
		watcher:     fw,
		onReload:    onReload,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the corpus directory. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.corpus.Dir()); err != nil {
		// Directory may not exist yet; the corpus is empty in that case.
		logging.CorpusWarn("watcher: initial watch of %s failed: %v", w.corpus.Dir(), err)
	} else {
		logging.Corpus("watcher: watching %s", w.corpus.Dir())
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".txt") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Corpus("watcher: %s %s", ev.Op, ev.Name)
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.CorpusWarn("watcher error: %v", err)
		}
	}
}

// scheduleReload (re)arms the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDur, func() {
		if err := w.corpus.Reload(); err != nil {
			logging.CorpusWarn("watcher: reload failed: %v", err)
			return
		}
		if w.onReload != nil {
			w.onReload()
		}
	})
}

// Stop terminates the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}
