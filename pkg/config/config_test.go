package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COMPASS_MODEL", "COMPASS_CLASSIFIER_MODEL", "OPENAI_BASE_URL",
		"COMPASS_MAX_ITERATIONS", "COMPASS_MAX_HISTORY_TOKENS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().LLM.Model, cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Graph.MaxIterations)
	assert.True(t, cfg.Workers.EnableJobSearch)
}

func TestLoadReadsYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: custom-model
  classifier_model: tiny-model
graph:
  max_iterations: 5
workers:
  enable_scraper: false
tools:
  allowed_domains:
    - "*.example.com"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", cfg.LLM.Model)
	assert.Equal(t, "tiny-model", cfg.LLM.ClassifierModel)
	assert.Equal(t, 5, cfg.Graph.MaxIterations)
	assert.False(t, cfg.Workers.EnableScraper)
	assert.Equal(t, []string{"*.example.com"}, cfg.Tools.AllowedDomains)
	// Unspecified numeric fields keep their defaults.
	assert.Equal(t, Default().Graph.MaxHistoryTokens, cfg.Graph.MaxHistoryTokens)
}

func TestLoadMalformedFileIsAnError(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesFileValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: from-file\n"), 0600))

	t.Setenv("COMPASS_MODEL", "from-env")
	t.Setenv("COMPASS_MAX_ITERATIONS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Graph.MaxIterations)
}

func TestEnvIgnoresInvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPASS_MAX_ITERATIONS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Graph.MaxIterations)
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  max_iterations: -1\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrips(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.LLM.Model = "saved-model"
	cfg.Tools.AllowedDomains = []string{"jobs.example.org"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-model", loaded.LLM.Model)
	assert.Equal(t, []string{"jobs.example.org"}, loaded.Tools.AllowedDomains)
}
