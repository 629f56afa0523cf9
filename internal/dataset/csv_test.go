package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRoundTrip(t *testing.T) {
	metros := []Metro{
		{
			Name: "Boston-Cambridge-Newton, MA-NH", Code: "14460",
			TotalPopulation: 4899932, MedianIncome: 94430, MedianHomeValue: 558300,
			BachelorsDegree: 1200000, PublicTransportation: 280000,
			UnemploymentRate: 4.8, UnemploymentChange1Y: -0.5,
			DiversityScore: 72, TopIndustryShare: 0.22,
		},
		{
			Name: "Phoenix-Mesa-Scottsdale, AZ", Code: "38060",
			TotalPopulation: 4845832, MedianIncome: 69056,
			// Remaining indicators missing.
			MedianHomeValue: math.NaN(), BachelorsDegree: math.NaN(),
			PublicTransportation: math.NaN(), UnemploymentRate: math.NaN(),
			UnemploymentChange1Y: math.NaN(), DiversityScore: math.NaN(),
			TopIndustryShare: math.NaN(),
		},
	}

	path := filepath.Join(t.TempDir(), "data", "metro_economic_data.csv")
	require.NoError(t, WriteCSV(path, metros))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "14460", got[0].Code)
	assert.InDelta(t, 94430, got[0].MedianIncome, 0.5)
	assert.True(t, got[0].HasRequiredFields())

	// Missing cells round-trip as missing.
	assert.True(t, Missing(got[1].UnemploymentRate))
	assert.False(t, got[1].HasRequiredFields())
}

func TestReadCSVToleratesJunkCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	csv := "metro_name,metro_code,total_population,unemployment_rate\n" +
		"\"Somewhere, ST\",99999,not-a-number,5.1\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, Missing(got[0].TotalPopulation))
	assert.InDelta(t, 5.1, got[0].UnemploymentRate, 1e-9)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestReadCSVRequiresNameColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headerless.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))
	_, err := ReadCSV(path)
	assert.Error(t, err)
}
