package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metropulse/internal/corpus"
	"metropulse/internal/embedding"
	"metropulse/internal/llm"
	"metropulse/internal/logging"
	"metropulse/internal/rag"
	"metropulse/internal/retrieval"
	"metropulse/internal/scoring"
	"metropulse/internal/server"
	"metropulse/internal/store"
	"metropulse/internal/usage"
)

// serveCmd runs the dashboard and query API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resilience dashboard and policy query API",
	Long: `Starts the HTTP server: the dashboard pages, the JSON API, chart
rendering, and the retrieval-augmented policy assistant.

Scores are loaded from the database, falling back to the scored CSV.
If neither exists, run 'metropulse collect' and 'metropulse score'
first. The assistant needs an LLM API key (OPENAI_API_KEY or
GEMINI_API_KEY); without one the dashboard still serves data and
charts.`,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	st, err := store.NewStore(databasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	scored, err := loadScored(st)
	if err != nil {
		return err
	}
	logging.Server("loaded %d scored metros", len(scored))

	engine, model, closeEngine, err := buildRAGEngine(st)
	if err != nil {
		return err
	}
	if closeEngine != nil {
		defer closeEngine()
	}

	srvCfg := cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}

	var answerer server.Answerer
	if engine != nil {
		answerer = engine
	}
	srv := server.New(srvCfg, answerer, st, scored, model)

	fmt.Printf("MetroPulse dashboard listening on %s\n", srvCfg.Addr)
	return srv.Run(ctx, cfg.GetShutdownTimeout())
}

// loadScored prefers the database and falls back to the scored CSV so a
// freshly cloned workspace with shipped CSVs still serves.
func loadScored(st *store.Store) ([]scoring.Scored, error) {
	scored, err := st.LoadScores()
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	if len(scored) > 0 {
		return scored, nil
	}
	scored, err = scoring.ReadScoredCSV(scoredCSVPath())
	if err != nil {
		return nil, fmt.Errorf("no scores available (run 'metropulse score' first): %w", err)
	}
	return scored, nil
}

// buildRAGEngine wires corpus, retrieval, LLM client, and usage tracking.
// With a Gemini key and an open store, embeddings are blended into the
// retrieval ranking. A missing API key degrades to a nil engine rather
// than failing startup.
func buildRAGEngine(st *store.Store) (*rag.Engine, string, func(), error) {
	docsDir := cfg.Data.DocsDir
	if !filepath.IsAbs(docsDir) {
		docsDir = filepath.Join(workspace, docsDir)
	}
	c, err := corpus.New(docsDir)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load policy corpus: %w", err)
	}
	logging.Corpus("loaded %d policy documents from %s", c.Len(), docsDir)

	cache := retrieval.NewResultCache(cfg.Retrieval.CacheSize, cfg.GetCacheTTL())
	searcher := retrieval.NewSearcher(c, retrieval.Config{
		MaxFeatures:   cfg.Retrieval.MaxFeatures,
		TopK:          cfg.Retrieval.TopK,
		MinSimilarity: cfg.Retrieval.MinSimilarity,
	}, cache)

	var closeWatch func()
	if cfg.Retrieval.WatchCorpus {
		watcher, werr := corpus.NewWatcher(c, func() {
			searcher.Rebuild(c)
			logging.Corpus("reindexed %d documents", c.Len())
		})
		if werr != nil {
			logger.Warn("Corpus watcher unavailable", zap.Error(werr))
		} else if werr := watcher.Start(context.Background()); werr != nil {
			logger.Warn("Corpus watcher failed to start", zap.Error(werr))
		} else {
			closeWatch = watcher.Stop
		}
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			logger.Warn("No LLM credentials found, policy assistant disabled")
			return nil, "", closeWatch, nil
		}
		return nil, "", closeWatch, fmt.Errorf("failed to configure LLM client: %w", err)
	}

	tracker, err := usage.NewTracker(workspace)
	if err != nil {
		return nil, "", closeWatch, fmt.Errorf("failed to initialize usage tracking: %w", err)
	}

	engine := rag.NewEngine(searcher, client, tracker, string(llm.ProviderOf(client)), cfg.Retrieval.SnippetChars)
	if st != nil {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			embedder, eerr := embedding.NewGenAIEngine(key, "")
			if eerr != nil {
				logger.Warn("Embedding engine unavailable, retrieval stays TF-IDF only", zap.Error(eerr))
			} else {
				engine.AttachDense(embedding.NewRanker(embedder, st))
				logging.RAG("dense retrieval enabled (model=%s)", embedder.Name())
			}
		}
	}
	logging.RAG("policy assistant ready (model=%s)", client.Model())
	return engine, client.Model(), closeWatch, nil
}
