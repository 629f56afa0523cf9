package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000, cfg.Retrieval.MaxFeatures)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.1, cfg.Retrieval.MinSimilarity, 1e-9)
	assert.Equal(t, 800, cfg.Retrieval.SnippetChars)
	assert.InDelta(t, 0.30, cfg.Scoring.EmploymentWeight, 1e-9)
	assert.InDelta(t, 0.20, cfg.Scoring.HumanCapitalWeight, 1e-9)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Server.Addr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metropulse.yaml")
	yaml := `
llm:
  provider: gemini
  model: gemini-2.0-flash
  timeout: 90s
retrieval:
  top_k: 5
server:
  addr: ":9999"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	// Untouched sections keep defaults.
	assert.Equal(t, 1000, cfg.Retrieval.MaxFeatures)
}

func TestEnvOverridesSupplyAPIKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CENSUS_API_KEY", "census-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "census-test", cfg.Data.CensusAPIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "cohere" }},
		{"zero max features", func(c *Config) { c.Retrieval.MaxFeatures = 0 }},
		{"negative top_k", func(c *Config) { c.Retrieval.TopK = -1 }},
		{"similarity above one", func(c *Config) { c.Retrieval.MinSimilarity = 1.5 }},
		{"weights off balance", func(c *Config) { c.Scoring.EmploymentWeight = 0.9 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "metropulse.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":7070"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", loaded.Server.Addr)
}
