package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metropulse/internal/dataset"
	"metropulse/internal/scoring"
	"metropulse/internal/store"
)

// scoreCmd computes composite resilience scores from the raw dataset.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute resilience scores from the collected dataset",
	Long: `Reads the raw metro dataset, normalizes each indicator across the
cohort, combines the four weighted components into a composite
resilience score, and writes both the scored CSV and the database.`,
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	metros, err := dataset.ReadCSV(rawCSVPath())
	if err != nil {
		return fmt.Errorf("failed to read dataset (run 'metropulse collect' first): %w", err)
	}

	scorer, err := scoring.NewScorer(scoring.Weights{
		Employment:   cfg.Scoring.EmploymentWeight,
		Diversity:    cfg.Scoring.DiversityWeight,
		Income:       cfg.Scoring.IncomeWeight,
		HumanCapital: cfg.Scoring.HumanCapitalWeight,
	})
	if err != nil {
		return fmt.Errorf("invalid scoring weights: %w", err)
	}

	scored := scorer.Score(metros)

	path := scoredCSVPath()
	if err := scoring.WriteScoredCSV(path, scored); err != nil {
		return fmt.Errorf("failed to write scores: %w", err)
	}

	st, err := store.NewStore(databasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()
	if err := st.SaveScores(scored); err != nil {
		return fmt.Errorf("failed to persist scores: %w", err)
	}

	logger.Info("Scores computed",
		zap.Int("metros", len(scored)),
		zap.String("csv", path),
		zap.String("db", databasePath()))

	summary := scoring.Summarize(scored)
	fmt.Printf("Scored %d metro areas (average %.1f)\n", summary.TotalMetros, summary.AvgResilienceScore)
	for i, m := range scoring.TopN(scored, 5) {
		fmt.Printf("  %d. %-45s %5.1f  %s\n", i+1, m.Name, m.Resilience, m.Category)
	}
	return nil
}
