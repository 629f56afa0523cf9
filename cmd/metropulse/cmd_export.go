package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metropulse/internal/export"
	"metropulse/internal/scoring"
	"metropulse/internal/store"
)

// exportCmd writes the offline report artifacts.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scored dataset as charts, a workbook, and an HTML report",
	Long: `Writes a self-contained report to the output directory: chart PNGs,
an Excel workbook with the full ranking and summary sheets, and a
single-file HTML dashboard with the charts inlined.`,
	RunE: runExport,
}

var exportDir string

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "reports", "output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := store.NewStore(databasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	scored, err := loadScored(st)
	if err != nil {
		return err
	}

	outDir := exportDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(workspace, outDir)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	charts := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"resilience_ranking.png", func() ([]byte, error) { return export.RankingChart(scored, len(scored)) }},
		{"category_distribution.png", func() ([]byte, error) { return export.CategoryChart(scored) }},
		{"income_vs_resilience.png", func() ([]byte, error) { return export.IncomeScatterChart(scored) }},
	}
	for _, c := range charts {
		png, err := c.render()
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", c.name, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, c.name), png, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", c.name, err)
		}
	}

	workbookPath := filepath.Join(outDir, "resilience_scores.xlsx")
	if err := export.WriteWorkbook(workbookPath, scored); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	dashboardPath := filepath.Join(outDir, "dashboard.html")
	if err := export.WriteDashboard(dashboardPath, scored); err != nil {
		return fmt.Errorf("failed to write dashboard: %w", err)
	}

	csvPath := filepath.Join(outDir, "metro_resilience_scores.csv")
	if err := scoring.WriteScoredCSV(csvPath, scored); err != nil {
		return fmt.Errorf("failed to write scored CSV: %w", err)
	}

	logger.Info("Report exported",
		zap.String("dir", outDir),
		zap.Int("metros", len(scored)))

	summary := scoring.Summarize(scored)
	fmt.Printf("Exported report for %d metros to %s\n", summary.TotalMetros, outDir)
	fmt.Printf("  charts: %d PNGs\n  workbook: %s\n  dashboard: %s\n",
		len(charts), filepath.Base(workbookPath), filepath.Base(dashboardPath))
	return nil
}
