package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"metropulse/internal/logging"
)

// censusVariables maps ACS 5-year variable codes to Metro field names.
// Order matters: the Census API echoes values in request order.
var censusVariables = []struct {
	Code  string
	Field string
}{
	{"B01003_001E", "total_population"},
	{"B19013_001E", "median_household_income"},
	{"B25077_001E", "median_home_value"},
	{"B15003_022E", "bachelors_degree"},
	{"B08301_010E", "public_transportation"},
}

// censusSentinel is the value the ACS API returns for suppressed cells.
const censusSentinel = "-999999999"

// CensusClient fetches ACS 5-year estimates for metro areas.
type CensusClient struct {
	apiKey     string
	baseURL    string
	year       int
	httpClient *http.Client
}

// CensusClientConfig holds configuration for the Census client.
type CensusClientConfig struct {
	APIKey  string
	BaseURL string
	Year    int
	Timeout time.Duration
}

// DefaultCensusClientConfig returns sensible defaults for the 2021 ACS.
func DefaultCensusClientConfig(apiKey string) CensusClientConfig {
	return CensusClientConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.census.gov/data",
		Year:    2021,
		Timeout: 30 * time.Second,
	}
}

// NewCensusClient creates a Census client with the given config.
func NewCensusClient(cfg CensusClientConfig) *CensusClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.census.gov/data"
	}
	if cfg.Year == 0 {
		cfg.Year = 2021
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CensusClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		year:    cfg.Year,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchMetro fetches ACS variables for a single CBSA code.
func (c *CensusClient) FetchMetro(ctx context.Context, name, code string) (Metro, error) {
	codes := make([]string, len(censusVariables))
	for i, v := range censusVariables {
		codes[i] = v.Code
	}

	q := url.Values{}
	q.Set("get", strings.Join(codes, ","))
	q.Set("for", fmt.Sprintf("metropolitan statistical area/micropolitan statistical area:%s", code))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	endpoint := fmt.Sprintf("%s/%d/acs/acs5?%s", c.baseURL, c.year, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Metro{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metro{}, fmt.Errorf("census request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Metro{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Metro{}, fmt.Errorf("census API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// The ACS API answers with a JSON array of arrays: header row, then data.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return Metro{}, fmt.Errorf("failed to parse census response: %w", err)
	}
	if len(rows) < 2 {
		return Metro{}, fmt.Errorf("census response has no data row for %s", code)
	}

	data := rows[1]
	if len(data) < len(censusVariables) {
		return Metro{}, fmt.Errorf("census response has %d columns, want at least %d", len(data), len(censusVariables))
	}

	m := Metro{Name: name, Code: code}
	for i, v := range censusVariables {
		val := parseCensusValue(data[i])
		switch v.Field {
		case "total_population":
			m.TotalPopulation = val
		case "median_household_income":
			m.MedianIncome = val
		case "median_home_value":
			m.MedianHomeValue = val
		case "bachelors_degree":
			m.BachelorsDegree = val
		case "public_transportation":
			m.PublicTransportation = val
		}
	}

	return m, nil
}

// parseCensusValue converts an ACS cell to a float. The suppression sentinel
// becomes 0 (matching the collected CSV layout); anything unparseable is
// missing.
func parseCensusValue(s string) float64 {
	if s == censusSentinel || s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Collector assembles the full metro dataset: Census demographics merged
// with synthesized unemployment and diversity indicators.
type Collector struct {
	census      *CensusClient
	metros      map[string]string
	parallelism int
}

// NewCollector creates a collector over the default major-metro list.
func NewCollector(census *CensusClient, parallelism int) *Collector {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Collector{
		census:      census,
		metros:      MajorMetros,
		parallelism: parallelism,
	}
}

// WithMetros overrides the metro list (used by tests).
func (c *Collector) WithMetros(metros map[string]string) *Collector {
	c.metros = metros
	return c
}

// Collect fetches every metro in parallel and merges in the synthesized
// indicators. A metro whose Census fetch fails is logged and dropped; the
// collection only errors when nothing could be fetched.
func (c *Collector) Collect(ctx context.Context) ([]Metro, error) {
	timer := logging.StartTimer(logging.CategoryDataset, "collect")
	defer timer.Stop()

	var (
		mu      sync.Mutex
		metros  []Metro
		dropped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)

	for name, code := range c.metros {
		name, code := name, code
		g.Go(func() error {
			m, err := c.census.FetchMetro(gctx, name, code)
			if err != nil {
				logging.DatasetWarn("collect: skipping %s: %v", name, err)
				mu.Lock()
				dropped++
				mu.Unlock()
				return nil // Per-metro failures are not fatal.
			}

			m.UnemploymentRate, m.UnemploymentChange1Y = SynthesizeUnemployment(name)
			m.DiversityScore, m.TopIndustryShare = SynthesizeDiversity(name)

			mu.Lock()
			metros = append(metros, m)
			mu.Unlock()
			logging.DatasetDebug("collect: fetched %s (pop=%.0f)", name, m.TotalPopulation)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(metros) == 0 {
		return nil, fmt.Errorf("census collection failed for all %d metros", len(c.metros))
	}

	// Stable output order regardless of goroutine completion order.
	sort.Slice(metros, func(i, j int) bool { return metros[i].Name < metros[j].Name })

	logging.Dataset("collect: %d metros collected, %d dropped", len(metros), dropped)
	return metros, nil
}
