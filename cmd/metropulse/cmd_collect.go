package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metropulse/internal/dataset"
)

// collectCmd fetches metro economic indicators and writes the raw dataset.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch Census economic indicators for the major metro areas",
	Long: `Fetches ACS demographic and economic indicators for the 20 largest
U.S. metropolitan areas, fills in unemployment and diversity figures,
and writes the raw dataset CSV.

A Census API key (--census-key or CENSUS_API_KEY) raises the rate limit
but is not required for small pulls.`,
	RunE: runCollect,
}

var censusKey string

func init() {
	collectCmd.Flags().StringVar(&censusKey, "census-key", "", "Census API key (or set CENSUS_API_KEY)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	key := censusKey
	if key == "" {
		key = cfg.Data.CensusAPIKey
	}

	ccfg := dataset.DefaultCensusClientConfig(key)
	if cfg.Data.CensusYear > 0 {
		ccfg.Year = cfg.Data.CensusYear
	}
	ccfg.Timeout = cfg.GetFetchTimeout()

	collector := dataset.NewCollector(dataset.NewCensusClient(ccfg), cfg.Data.Parallelism)

	logger.Info("Collecting metro indicators", zap.Int("metros", len(dataset.MajorMetros)))
	metros, err := collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	path := rawCSVPath()
	if err := dataset.WriteCSV(path, metros); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	logger.Info("Dataset written", zap.String("path", path), zap.Int("metros", len(metros)))
	fmt.Printf("Collected %d metro areas -> %s\n", len(metros), path)
	return nil
}
