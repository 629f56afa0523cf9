package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"metropulse/internal/dataset"
	"metropulse/internal/logging"
	"metropulse/internal/scoring"
)

const (
	scoresSheet  = "Resilience_Scores"
	summarySheet = "Summary"
)

// WriteWorkbook writes the scored dataset to an Excel workbook with a
// ranked scores sheet and an aggregate summary sheet.
func WriteWorkbook(path string, scored []scoring.Scored) error {
	if len(scored) == 0 {
		return fmt.Errorf("no scored metros to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", scoresSheet)

	headers := []string{
		"Rank", "Metro Area", "CBSA Code", "Resilience Score", "Category",
		"Employment Stability", "Economic Diversity", "Income Resilience", "Human Capital",
		"Population", "Median Income ($)", "Unemployment Rate (%)",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(scoresSheet, cell, header)
		f.SetColWidth(scoresSheet, cell[:1], cell[:1], 18)
	}
	f.SetColWidth(scoresSheet, "B", "B", 45)

	ranked := scoring.TopN(scored, len(scored))
	for i, m := range ranked {
		row := i + 2
		f.SetCellValue(scoresSheet, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(scoresSheet, fmt.Sprintf("B%d", row), m.Name)
		f.SetCellValue(scoresSheet, fmt.Sprintf("C%d", row), m.Code)
		f.SetCellValue(scoresSheet, fmt.Sprintf("D%d", row), m.Resilience)
		f.SetCellValue(scoresSheet, fmt.Sprintf("E%d", row), m.Category)
		f.SetCellValue(scoresSheet, fmt.Sprintf("F%d", row), m.EmploymentStability)
		f.SetCellValue(scoresSheet, fmt.Sprintf("G%d", row), m.Diversity)
		f.SetCellValue(scoresSheet, fmt.Sprintf("H%d", row), m.IncomeResilience)
		f.SetCellValue(scoresSheet, fmt.Sprintf("I%d", row), m.HumanCapital)
		setNumericCell(f, fmt.Sprintf("J%d", row), m.TotalPopulation)
		setNumericCell(f, fmt.Sprintf("K%d", row), m.MedianIncome)
		setNumericCell(f, fmt.Sprintf("L%d", row), m.UnemploymentRate)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summary := scoring.Summarize(scored)
	f.SetCellValue(summarySheet, "A1", "RESILIENCE SUMMARY")
	f.SetCellValue(summarySheet, "A2", "Metro Areas")
	f.SetCellValue(summarySheet, "B2", summary.TotalMetros)
	f.SetCellValue(summarySheet, "A3", "Average Score")
	f.SetCellValue(summarySheet, "B3", summary.AvgResilienceScore)
	f.SetCellValue(summarySheet, "A4", "Highest Score")
	f.SetCellValue(summarySheet, "B4", summary.HighestScore)
	f.SetCellValue(summarySheet, "A5", "Lowest Score")
	f.SetCellValue(summarySheet, "B5", summary.LowestScore)

	f.SetCellValue(summarySheet, "A7", "Category")
	f.SetCellValue(summarySheet, "B7", "Metro Areas")
	for i, cat := range categoryOrder {
		row := 8 + i
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), cat)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), summary.CategoryDistribution[cat])
	}
	f.SetColWidth(summarySheet, "A", "B", 20)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	logging.Export("workbook written: %s (%d metros)", path, len(scored))
	return nil
}

// setNumericCell writes a float cell, leaving missing values blank.
func setNumericCell(f *excelize.File, cell string, v float64) {
	if dataset.Missing(v) {
		return
	}
	f.SetCellValue(scoresSheet, cell, v)
}
