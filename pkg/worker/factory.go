package worker

import (
	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/history"
	"github.com/entrhq/compass/pkg/llm"
	"github.com/entrhq/compass/pkg/tools"
)

// Generation defaults per variant. The writing variant gets extra output
// headroom for full documents; the extraction variant runs deterministic.
const (
	defaultTemperature   = 0.7
	defaultMaxOutput     = 2048
	coverLetterMaxOutput = 4096
	scraperTemperature   = 0.0
)

// NewGeneral builds the default variant.
func NewGeneral(provider llm.Provider, registry *tools.Registry, est history.Estimator) (*Worker, error) {
	return New(Config{
		Role:            graph.RoleGeneral,
		Provider:        provider,
		BuildPrompt:     BuildGeneralPrompt,
		Tools:           registry,
		Estimator:       est,
		Temperature:     defaultTemperature,
		MaxOutputTokens: defaultMaxOutput,
	})
}

// NewJobSearch builds the job discovery variant.
func NewJobSearch(provider llm.Provider, registry *tools.Registry, est history.Estimator) (*Worker, error) {
	return New(Config{
		Role:            graph.RoleJobSearch,
		Provider:        provider,
		BuildPrompt:     BuildJobSearchPrompt,
		Tools:           registry,
		Estimator:       est,
		Temperature:     defaultTemperature,
		MaxOutputTokens: defaultMaxOutput,
	})
}

// NewCoverLetter builds the writing variant.
func NewCoverLetter(provider llm.Provider, registry *tools.Registry, est history.Estimator) (*Worker, error) {
	return New(Config{
		Role:            graph.RoleCoverLetter,
		Provider:        provider,
		BuildPrompt:     BuildCoverLetterPrompt,
		Tools:           registry,
		Estimator:       est,
		Temperature:     defaultTemperature,
		MaxOutputTokens: coverLetterMaxOutput,
	})
}

// NewCRM builds the records variant.
func NewCRM(provider llm.Provider, registry *tools.Registry, est history.Estimator) (*Worker, error) {
	return New(Config{
		Role:            graph.RoleCRM,
		Provider:        provider,
		BuildPrompt:     BuildCRMPrompt,
		Tools:           registry,
		Estimator:       est,
		Temperature:     defaultTemperature,
		MaxOutputTokens: defaultMaxOutput,
	})
}

// NewScraper builds the extraction variant. It skips evaluation: extraction
// output is judged structurally by the caller, not by a second model pass.
func NewScraper(provider llm.Provider, registry *tools.Registry, est history.Estimator) (*Worker, error) {
	return New(Config{
		Role:            graph.RoleScraper,
		Provider:        provider,
		BuildPrompt:     BuildScraperPrompt,
		Tools:           registry,
		Estimator:       est,
		Temperature:     scraperTemperature,
		MaxOutputTokens: defaultMaxOutput,
		SkipEvaluation:  true,
	})
}
