package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metropulse/internal/corpus"
	"metropulse/internal/embedding"
	"metropulse/internal/store"
)

// embedCmd computes dense embeddings for the policy corpus.
var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed the policy corpus with the Gemini embedding model",
	Long: `Computes dense vector embeddings for every policy document and stores
them in the database. Documents already embedded with the current model
are skipped unless --force is given. Requires GEMINI_API_KEY.`,
	RunE: runEmbed,
}

var (
	embedForce  bool
	embedModel  string
	embedSearch string
)

func init() {
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "re-embed documents that already have vectors")
	embedCmd.Flags().StringVar(&embedModel, "model", "", "embedding model (default gemini-embedding-001)")
	embedCmd.Flags().StringVar(&embedSearch, "search", "", "rank stored documents against this text instead of syncing")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}

	engine, err := embedding.NewGenAIEngine(apiKey, embedModel)
	if err != nil {
		return fmt.Errorf("failed to create embedding engine: %w", err)
	}

	docsDir := cfg.Data.DocsDir
	if !filepath.IsAbs(docsDir) {
		docsDir = filepath.Join(workspace, docsDir)
	}
	c, err := corpus.New(docsDir)
	if err != nil {
		return fmt.Errorf("failed to load policy corpus: %w", err)
	}

	st, err := store.NewStore(databasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	if embedSearch != "" {
		neighbors, err := embedding.Nearest(ctx, engine, st, embedSearch, 5)
		if err != nil {
			return fmt.Errorf("dense search failed: %w", err)
		}
		if len(neighbors) == 0 {
			fmt.Println("No embedded documents (run 'metropulse embed' first)")
			return nil
		}
		for i, n := range neighbors {
			fmt.Printf("%d. %-40s %.4f\n", i+1, n.Filename, n.Similarity)
		}
		return nil
	}

	embedded, err := embedding.Sync(ctx, engine, c, st, embedForce)
	if err != nil {
		return fmt.Errorf("embedding sync failed: %w", err)
	}

	logger.Info("Corpus embedded",
		zap.String("model", engine.Name()),
		zap.Int("documents", c.Len()),
		zap.Int("embedded", embedded))
	fmt.Printf("Embedded %d of %d documents (%s)\n", embedded, c.Len(), engine.Name())
	return nil
}
