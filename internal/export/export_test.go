package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"metropulse/internal/dataset"
	"metropulse/internal/scoring"
)

func testScored() []scoring.Scored {
	mk := func(name string, score, income, pop float64) scoring.Scored {
		return scoring.Scored{
			Metro: dataset.Metro{
				Name:             name,
				Code:             "12345",
				TotalPopulation:  pop,
				MedianIncome:     income,
				UnemploymentRate: 4.5,
			},
			EmploymentStability: 70,
			Diversity:           65,
			IncomeResilience:    60,
			HumanCapital:        55,
			Resilience:          score,
			Category:            scoring.Categorize(score),
		}
	}
	return []scoring.Scored{
		mk("Austin-Round Rock, TX", 84.2, 78000, 2300000),
		mk("Denver-Aurora-Lakewood, CO", 72.6, 82000, 2900000),
		mk("Cleveland-Elyria, OH", 48.3, 54000, 2000000),
	}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRankingChart(t *testing.T) {
	png, err := RankingChart(testScored(), 10)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "expected PNG output")
}

func TestCategoryChart(t *testing.T) {
	png, err := CategoryChart(testScored())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "expected PNG output")
}

func TestIncomeScatterChart(t *testing.T) {
	png, err := IncomeScatterChart(testScored())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "expected PNG output")
}

func TestComponentChart(t *testing.T) {
	png, err := ComponentChart(testScored()[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "expected PNG output")
}

func TestChartsRejectEmptyInput(t *testing.T) {
	_, err := RankingChart(nil, 10)
	assert.Error(t, err)
	_, err = CategoryChart(nil)
	assert.Error(t, err)
	_, err = IncomeScatterChart(nil)
	assert.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.xlsx")
	require.NoError(t, WriteWorkbook(path, testScored()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{scoresSheet, summarySheet}, f.GetSheetList())

	// Best metro ranks first.
	name, err := f.GetCellValue(scoresSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Austin-Round Rock, TX", name)

	score, err := f.GetCellValue(scoresSheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "84.2", score)

	total, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestWriteDashboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	require.NoError(t, WriteDashboard(path, testScored()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "Metro Economic Resilience Dashboard")
	assert.Contains(t, html, "Austin-Round Rock, TX")
	assert.Contains(t, html, "data:image/png;base64,")
	assert.Contains(t, html, "cat-very-high")
	assert.Contains(t, html, "2,300,000")
	// All three charts inlined.
	assert.Equal(t, 3, strings.Count(html, "data:image/png;base64,"))
}

func TestShortMetroName(t *testing.T) {
	assert.Equal(t, "Dallas", shortMetroName("Dallas-Fort Worth-Arlington, TX"))
	assert.Equal(t, "Boise City", shortMetroName("Boise City, ID"))
	assert.Equal(t, "Standalone", shortMetroName("Standalone"))
}
