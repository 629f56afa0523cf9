package scoring

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"metropulse/internal/dataset"
	"metropulse/internal/logging"
)

// scoredHeader extends the raw dataset columns with the score breakdown.
var scoredHeader = []string{
	"metro_name", "metro_code",
	"total_population", "median_household_income", "median_home_value",
	"bachelors_degree", "public_transportation",
	"unemployment_rate", "unemployment_change_1yr",
	"economic_diversity_score", "top_industry_share",
	"employment_stability_score", "diversity_score",
	"income_resilience_score", "human_capital_score",
	"resilience_score", "resilience_category",
}

// WriteScoredCSV persists the scored dataset.
func WriteScoredCSV(path string, scored []Scored) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(scoredHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	f1 := func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	for _, m := range scored {
		row := []string{
			m.Name, m.Code,
			ff(m.TotalPopulation), ff(m.MedianIncome), ff(m.MedianHomeValue),
			ff(m.BachelorsDegree), ff(m.PublicTransportation),
			ff(m.UnemploymentRate), ff(m.UnemploymentChange1Y),
			ff(m.DiversityScore), ff(m.TopIndustryShare),
			f1(m.EmploymentStability), f1(m.Diversity),
			f1(m.IncomeResilience), f1(m.HumanCapital),
			f1(m.Resilience), m.Category,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", m.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	logging.Scoring("wrote %d scored metros to %s", len(scored), path)
	return nil
}

// ReadScoredCSV loads a previously scored dataset.
func ReadScoredCSV(path string) ([]Scored, error) {
	metros, err := dataset.ReadCSV(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	idx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		idx[col] = i
	}
	for _, col := range []string{"resilience_score", "resilience_category"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s missing %s column; run `metropulse score` first", path, col)
		}
	}

	num := func(row []string, col string) float64 {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return 0
		}
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return 0
		}
		return v
	}

	// dataset.ReadCSV skips rows without a metro_name; mirror that here so
	// the two passes stay aligned.
	scored := make([]Scored, 0, len(metros))
	mi := 0
	for _, row := range records[1:] {
		if ni := idx["metro_name"]; ni >= len(row) || row[ni] == "" {
			continue
		}
		if mi >= len(metros) {
			break
		}
		ri := mi
		mi++
		scored = append(scored, Scored{
			Metro:               metros[ri],
			EmploymentStability: num(row, "employment_stability_score"),
			Diversity:           num(row, "diversity_score"),
			IncomeResilience:    num(row, "income_resilience_score"),
			HumanCapital:        num(row, "human_capital_score"),
			Resilience:          num(row, "resilience_score"),
			Category:            row[idx["resilience_category"]],
		})
	}

	return scored, nil
}
