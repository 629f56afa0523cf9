package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func censusHandler(t *testing.T, rows map[string][]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("for")
		// for=metropolitan statistical area/micropolitan statistical area:35620
		code = code[len(code)-5:]
		row, ok := rows[code]
		if !ok {
			http.Error(w, "unknown area", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[["B01003_001E","B19013_001E","B25077_001E","B15003_022E","B08301_010E","metro"],
[%q,%q,%q,%q,%q,%q]]`, row[0], row[1], row[2], row[3], row[4], code)
	}
}

func TestFetchMetroParsesResponse(t *testing.T) {
	srv := httptest.NewServer(censusHandler(t, map[string][]string{
		"35620": {"19354922", "84409", "533700", "3100000", "2500000"},
	}))
	defer srv.Close()

	client := NewCensusClient(CensusClientConfig{BaseURL: srv.URL})
	m, err := client.FetchMetro(context.Background(), "New York-Newark-Jersey City, NY-NJ-PA", "35620")
	require.NoError(t, err)

	assert.Equal(t, "35620", m.Code)
	assert.InDelta(t, 19354922, m.TotalPopulation, 0.5)
	assert.InDelta(t, 84409, m.MedianIncome, 0.5)
	assert.InDelta(t, 533700, m.MedianHomeValue, 0.5)
	assert.InDelta(t, 3100000, m.BachelorsDegree, 0.5)
}

func TestFetchMetroSuppressedCellBecomesZero(t *testing.T) {
	srv := httptest.NewServer(censusHandler(t, map[string][]string{
		"12580": {"2800000", "-999999999", "350000", "700000", "120000"},
	}))
	defer srv.Close()

	client := NewCensusClient(CensusClientConfig{BaseURL: srv.URL})
	m, err := client.FetchMetro(context.Background(), "Baltimore-Columbia-Towson, MD", "12580")
	require.NoError(t, err)
	assert.Zero(t, m.MedianIncome)
}

func TestFetchMetroErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewCensusClient(CensusClientConfig{BaseURL: srv.URL})
	_, err := client.FetchMetro(context.Background(), "Denver-Aurora-Lakewood, CO", "19740")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCollectSkipsFailedMetros(t *testing.T) {
	srv := httptest.NewServer(censusHandler(t, map[string][]string{
		"19740": {"2963821", "85641", "520000", "900000", "80000"},
		// 45300 intentionally absent: the handler 404s it.
	}))
	defer srv.Close()

	client := NewCensusClient(CensusClientConfig{BaseURL: srv.URL})
	collector := NewCollector(client, 2).WithMetros(map[string]string{
		"Denver-Aurora-Lakewood, CO":          "19740",
		"Tampa-St. Petersburg-Clearwater, FL": "45300",
	})

	metros, err := collector.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, metros, 1)

	m := metros[0]
	assert.Equal(t, "Denver-Aurora-Lakewood, CO", m.Name)
	// Synthesized indicators are populated on successful fetch.
	assert.GreaterOrEqual(t, m.UnemploymentRate, 4.2)
	assert.Less(t, m.UnemploymentRate, 7.3)
	assert.GreaterOrEqual(t, m.DiversityScore, 50.0)
	assert.Less(t, m.DiversityScore, 90.0)
}

func TestCollectAllFailuresErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewCensusClient(CensusClientConfig{BaseURL: srv.URL})
	collector := NewCollector(client, 2).WithMetros(map[string]string{
		"Denver-Aurora-Lakewood, CO": "19740",
	})

	_, err := collector.Collect(context.Background())
	assert.Error(t, err)
}

func TestSynthesizedIndicatorsAreDeterministic(t *testing.T) {
	for name := range MajorMetros {
		r1, c1 := SynthesizeUnemployment(name)
		r2, c2 := SynthesizeUnemployment(name)
		assert.Equal(t, r1, r2, name)
		assert.Equal(t, c1, c2, name)

		d1, s1 := SynthesizeDiversity(name)
		assert.GreaterOrEqual(t, d1, 50.0, name)
		assert.Less(t, d1, 90.0, name)
		assert.GreaterOrEqual(t, s1, 0.15, name)
		assert.Less(t, s1, 0.35, name)
	}
}
