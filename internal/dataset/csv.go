package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"metropulse/internal/logging"
)

// csvHeader is the canonical column order of the economic dataset CSV.
var csvHeader = []string{
	"metro_name",
	"metro_code",
	"total_population",
	"median_household_income",
	"median_home_value",
	"bachelors_degree",
	"public_transportation",
	"unemployment_rate",
	"unemployment_change_1yr",
	"economic_diversity_score",
	"top_industry_share",
}

// WriteCSV writes the dataset to path, creating parent directories.
func WriteCSV(path string, metros []Metro) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, m := range metros {
		row := []string{
			m.Name,
			m.Code,
			formatCell(m.TotalPopulation),
			formatCell(m.MedianIncome),
			formatCell(m.MedianHomeValue),
			formatCell(m.BachelorsDegree),
			formatCell(m.PublicTransportation),
			formatCell(m.UnemploymentRate),
			formatCell(m.UnemploymentChange1Y),
			formatCell(m.DiversityScore),
			formatCell(m.TopIndustryShare),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", m.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	logging.Dataset("wrote %d metros to %s", len(metros), path)
	return nil
}

// ReadCSV loads the dataset from path. Unparseable numeric cells become
// missing values rather than failing the whole load.
func ReadCSV(path string) ([]Metro, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	// Column positions by header name; extra columns are ignored so scored
	// CSVs (which append score columns) load through the same path.
	idx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		idx[col] = i
	}
	if _, ok := idx["metro_name"]; !ok {
		return nil, fmt.Errorf("%s missing metro_name column", path)
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	metros := make([]Metro, 0, len(records)-1)
	for _, row := range records[1:] {
		m := Metro{
			Name:                 cell(row, "metro_name"),
			Code:                 cell(row, "metro_code"),
			TotalPopulation:      parseCell(cell(row, "total_population")),
			MedianIncome:         parseCell(cell(row, "median_household_income")),
			MedianHomeValue:      parseCell(cell(row, "median_home_value")),
			BachelorsDegree:      parseCell(cell(row, "bachelors_degree")),
			PublicTransportation: parseCell(cell(row, "public_transportation")),
			UnemploymentRate:     parseCell(cell(row, "unemployment_rate")),
			UnemploymentChange1Y: parseCell(cell(row, "unemployment_change_1yr")),
			DiversityScore:       parseCell(cell(row, "economic_diversity_score")),
			TopIndustryShare:     parseCell(cell(row, "top_industry_share")),
		}
		if m.Name == "" {
			continue
		}
		metros = append(metros, m)
	}

	return metros, nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
