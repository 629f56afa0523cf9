package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"metropulse/internal/corpus"
	"metropulse/internal/store"
	"metropulse/internal/usage"
)

// statusCmd prints a snapshot of the workspace state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset, corpus, database, and usage status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Printf("Workspace:  %s\n", workspace)
	fmt.Printf("Database:   %s\n", databasePath())
	fmt.Printf("LLM:        provider=%s model=%s\n", orUnset(cfg.LLM.Provider), orUnset(cfg.LLM.Model))

	if info, err := os.Stat(rawCSVPath()); err == nil {
		fmt.Printf("Raw data:   %s (%d bytes, %s)\n", rawCSVPath(), info.Size(), info.ModTime().Format("2006-01-02 15:04"))
	} else {
		fmt.Println("Raw data:   missing (run 'metropulse collect')")
	}
	if info, err := os.Stat(scoredCSVPath()); err == nil {
		fmt.Printf("Scores:     %s (%d bytes, %s)\n", scoredCSVPath(), info.Size(), info.ModTime().Format("2006-01-02 15:04"))
	} else {
		fmt.Println("Scores:     missing (run 'metropulse score')")
	}

	docsDir := cfg.Data.DocsDir
	if !filepath.IsAbs(docsDir) {
		docsDir = filepath.Join(workspace, docsDir)
	}
	if c, err := corpus.New(docsDir); err == nil {
		fmt.Printf("Corpus:     %d policy documents in %s\n", c.Len(), docsDir)
	} else {
		fmt.Printf("Corpus:     unavailable (%v)\n", err)
	}

	if st, err := store.NewStore(databasePath()); err == nil {
		if stats, err := st.Stats(); err == nil {
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Println("Database rows:")
			for _, k := range keys {
				fmt.Printf("  %-20s %d\n", k, stats[k])
			}
		}
		st.Close()
	}

	if tracker, err := usage.NewTracker(workspace); err == nil {
		stats := tracker.Stats()
		if stats.Total.Total > 0 {
			fmt.Printf("LLM usage:  %d tokens (%d in, %d out)\n",
				stats.Total.Total, stats.Total.Input, stats.Total.Output)
			for model, tc := range stats.ByModel {
				fmt.Printf("  %-20s %d tokens\n", model, tc.Total)
			}
		} else {
			fmt.Println("LLM usage:  none recorded")
		}
	}

	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(auto)"
	}
	return s
}
