// Package config loads and validates metropulse configuration from
// metropulse.yaml, with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all metropulse configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Data paths and collection settings
	Data DataConfig `yaml:"data"`

	// Retrieval tuning
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Resilience scoring weights and thresholds
	Scoring ScoringConfig `yaml:"scoring"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the hosted language model client.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, gemini
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
	MaxTokens int    `yaml:"max_tokens"`
}

// DataConfig configures data ingestion and storage paths.
type DataConfig struct {
	Dir          string `yaml:"dir"`           // CSV directory
	DocsDir      string `yaml:"docs_dir"`      // Policy document corpus
	DatabasePath string `yaml:"database_path"` // SQLite store
	CensusAPIKey string `yaml:"census_api_key"`
	CensusYear   int    `yaml:"census_year"`
	FetchTimeout string `yaml:"fetch_timeout"`
	Parallelism  int    `yaml:"parallelism"` // Concurrent Census fetches
}

// RetrievalConfig tunes the TF-IDF searcher.
type RetrievalConfig struct {
	MaxFeatures   int     `yaml:"max_features"`   // Vocabulary cap
	TopK          int     `yaml:"top_k"`          // Documents per answer
	MinSimilarity float64 `yaml:"min_similarity"` // Cosine floor
	SnippetChars  int     `yaml:"snippet_chars"`  // Prompt excerpt length
	CacheSize     int     `yaml:"cache_size"`
	CacheTTL      string  `yaml:"cache_ttl"`
	WatchCorpus   bool    `yaml:"watch_corpus"` // Reload on docs changes
}

// ScoringConfig holds the composite weights and category thresholds.
type ScoringConfig struct {
	EmploymentWeight   float64 `yaml:"employment_weight"`
	DiversityWeight    float64 `yaml:"diversity_weight"`
	IncomeWeight       float64 `yaml:"income_weight"`
	HumanCapitalWeight float64 `yaml:"human_capital_weight"`
}

// ServerConfig configures the HTTP dashboard.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig mirrors the logging package's expectations.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "metropulse",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			BaseURL:   "https://api.openai.com/v1",
			Timeout:   "60s",
			MaxTokens: 500,
		},

		Data: DataConfig{
			Dir:          "data",
			DocsDir:      "docs/policies",
			DatabasePath: "data/metropulse.db",
			CensusYear:   2021,
			FetchTimeout: "30s",
			Parallelism:  4,
		},

		Retrieval: RetrievalConfig{
			MaxFeatures:   1000,
			TopK:          3,
			MinSimilarity: 0.1,
			SnippetChars:  800,
			CacheSize:     256,
			CacheTTL:      "5m",
			WatchCorpus:   true,
		},

		Scoring: ScoringConfig{
			EmploymentWeight:   0.30,
			DiversityWeight:    0.25,
			IncomeWeight:       0.25,
			HumanCapitalWeight: 0.20,
		},

		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     "15s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "10s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides lets environment variables supply secrets so they never
// have to live in the YAML file.
func (c *Config) applyEnvOverrides() {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Data.CensusAPIKey == "" {
		c.Data.CensusAPIKey = os.Getenv("CENSUS_API_KEY")
	}
}

// parseDuration parses a duration string, falling back to def on error.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// GetLLMTimeout returns the LLM request timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetFetchTimeout returns the per-metro Census fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Data.FetchTimeout, 30*time.Second)
}

// GetCacheTTL returns the retrieval cache TTL.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Retrieval.CacheTTL, 5*time.Minute)
}

// GetReadTimeout returns the server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 60*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}

	if c.Retrieval.MaxFeatures <= 0 {
		return fmt.Errorf("retrieval.max_features must be positive, got %d", c.Retrieval.MaxFeatures)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("retrieval.min_similarity must be in [0,1], got %v", c.Retrieval.MinSimilarity)
	}

	w := c.Scoring
	sum := w.EmploymentWeight + w.DiversityWeight + w.IncomeWeight + w.HumanCapitalWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}
	for name, v := range map[string]float64{
		"employment_weight":    w.EmploymentWeight,
		"diversity_weight":     w.DiversityWeight,
		"income_weight":        w.IncomeWeight,
		"human_capital_weight": w.HumanCapitalWeight,
	} {
		if v < 0 {
			return fmt.Errorf("scoring.%s must be non-negative, got %v", name, v)
		}
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	return nil
}
