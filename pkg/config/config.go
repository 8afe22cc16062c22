// Package config loads the runtime configuration from a YAML file with
// environment variable overrides. The loaded struct is passed explicitly
// into graph construction; nothing in the core reads configuration
// ambiently.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects models and endpoint for the provider.
type LLMConfig struct {
	// Model is the reasoning model used by workers and evaluators.
	Model string `yaml:"model"`

	// ClassifierModel is the cheap model used for intent classification.
	// Empty means classification runs on Model.
	ClassifierModel string `yaml:"classifier_model"`

	// BaseURL overrides the API endpoint. Empty uses the provider default.
	BaseURL string `yaml:"base_url"`
}

// GraphConfig tunes the turn driver.
type GraphConfig struct {
	// MaxIterations caps evaluator-driven retries per turn.
	MaxIterations int `yaml:"max_iterations"`

	// MaxHistoryTokens is the per-call conversation window budget.
	MaxHistoryTokens int `yaml:"max_history_tokens"`
}

// WorkersConfig toggles the specialized variants. The general worker is
// always registered.
type WorkersConfig struct {
	EnableJobSearch bool `yaml:"enable_job_search"`
	EnableCRM       bool `yaml:"enable_crm"`
	EnableScraper   bool `yaml:"enable_scraper"`
}

// ToolsConfig bounds tool behavior.
type ToolsConfig struct {
	// AllowedDomains is the glob allow-list for web fetch and browsing.
	// Empty allows all domains.
	AllowedDomains []string `yaml:"allowed_domains"`

	// BrowserHeadless runs the browser without a window.
	BrowserHeadless bool `yaml:"browser_headless"`
}

// RuntimeConfig is the full application configuration.
type RuntimeConfig struct {
	LLM     LLMConfig     `yaml:"llm"`
	Graph   GraphConfig   `yaml:"graph"`
	Workers WorkersConfig `yaml:"workers"`
	Tools   ToolsConfig   `yaml:"tools"`
}

// Default returns the configuration used when no file exists.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		LLM: LLMConfig{
			Model:           "gpt-4o",
			ClassifierModel: "gpt-4o-mini",
		},
		Graph: GraphConfig{
			MaxIterations:    3,
			MaxHistoryTokens: 24000,
		},
		Workers: WorkersConfig{
			EnableJobSearch: true,
			EnableCRM:       true,
			EnableScraper:   true,
		},
		Tools: ToolsConfig{
			BrowserHeadless: true,
		},
	}
}

// DefaultPath returns the conventional config file location,
// ~/.compass/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".compass", "config.yaml"), nil
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides. A malformed file
// is an error rather than a silent fallback.
func Load(path string) (*RuntimeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment overrides on top of file values.
func (c *RuntimeConfig) applyEnv() {
	if v := os.Getenv("COMPASS_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("COMPASS_CLASSIFIER_MODEL"); v != "" {
		c.LLM.ClassifierModel = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("COMPASS_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Graph.MaxIterations = n
		}
	}
	if v := os.Getenv("COMPASS_MAX_HISTORY_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Graph.MaxHistoryTokens = n
		}
	}
}

func (c *RuntimeConfig) validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.Graph.MaxIterations < 1 {
		return fmt.Errorf("graph.max_iterations must be at least 1, got %d", c.Graph.MaxIterations)
	}
	if c.Graph.MaxHistoryTokens < 1 {
		return fmt.Errorf("graph.max_history_tokens must be at least 1, got %d", c.Graph.MaxHistoryTokens)
	}
	return nil
}

// Save writes the configuration to path atomically, creating the directory
// if needed.
func (c *RuntimeConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
