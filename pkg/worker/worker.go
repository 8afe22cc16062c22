// Package worker implements the shared worker contract and its
// specializations. A worker produces one candidate assistant response per
// generation pass, optionally requesting tool calls, from a role-specific
// system prompt and a token-budgeted history window.
package worker

import (
	"context"
	"fmt"

	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/history"
	"github.com/entrhq/compass/pkg/llm"
	"github.com/entrhq/compass/pkg/logging"
	"github.com/entrhq/compass/pkg/tools"
	"github.com/entrhq/compass/pkg/types"
)

// DefaultMaxHistoryTokens bounds the conversation window sent per call.
const DefaultMaxHistoryTokens = 24000

// PromptBuilder builds a role-specific system prompt from turn state.
type PromptBuilder func(state *graph.ConversationState) string

// Config constructs a worker specialization. Specializations differ only in
// role name, prompt content, bound tool set, and generation parameters.
type Config struct {
	// Role is the variant identifier the triage router targets.
	Role string

	// Provider is the reasoning model client.
	Provider llm.Provider

	// BuildPrompt produces the role's system prompt.
	BuildPrompt PromptBuilder

	// Tools is the bound tool set. Optional: nil binds no tools.
	Tools *tools.Registry

	// Estimator counts tokens for trimming and client-side accounting.
	// Optional: nil falls back to character-based estimation.
	Estimator history.Estimator

	// MaxHistoryTokens is the trimmer budget. Zero uses the default.
	MaxHistoryTokens int

	// Temperature and MaxOutputTokens are the generation parameters.
	Temperature     float64
	MaxOutputTokens int

	// SkipEvaluation routes this variant straight to turn end when no tool
	// call is present, bypassing the evaluator.
	SkipEvaluation bool
}

// Worker is a concrete specialization of the shared contract.
type Worker struct {
	cfg Config
	log *logging.Logger
}

var _ graph.Worker = (*Worker)(nil)

// New creates a worker from the given configuration.
func New(cfg Config) (*Worker, error) {
	if cfg.Role == "" {
		return nil, fmt.Errorf("worker role is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("worker %q: LLM provider is required", cfg.Role)
	}
	if cfg.BuildPrompt == nil {
		return nil, fmt.Errorf("worker %q: prompt builder is required", cfg.Role)
	}
	if cfg.MaxHistoryTokens <= 0 {
		cfg.MaxHistoryTokens = DefaultMaxHistoryTokens
	}
	log, _ := logging.NewLogger("worker." + cfg.Role)
	return &Worker{cfg: cfg, log: log}, nil
}

// Role returns the variant identifier this worker serves.
func (w *Worker) Role() string {
	return w.cfg.Role
}

// SkipsEvaluation reports whether this variant bypasses the evaluator.
func (w *Worker) SkipsEvaluation() bool {
	return w.cfg.SkipEvaluation
}

// Execute runs one generation pass: build the prompt (incorporating
// evaluator feedback when present), trim history to the token budget, invoke
// the model once, and return exactly one new assistant message plus the
// invocation's token cost.
func (w *Worker) Execute(ctx context.Context, state *graph.ConversationState, emit types.EventHandler) (*graph.WorkerOutput, error) {
	if emit == nil {
		emit = func(*types.AgentEvent) {}
	}

	systemPrompt := w.cfg.BuildPrompt(state)
	if state.FeedbackOnWork != "" {
		systemPrompt += feedbackBlock(state.FeedbackOnWork)
	}

	trimmed := history.Trim(state.Messages, w.cfg.MaxHistoryTokens, w.cfg.Estimator)

	req := &llm.Request{
		SystemPrompt: systemPrompt,
		Messages:     trimmed,
		Params: llm.GenerationParams{
			Temperature:     w.cfg.Temperature,
			MaxOutputTokens: w.cfg.MaxOutputTokens,
		},
	}
	if w.cfg.Tools != nil {
		req.Tools = w.cfg.Tools.Definitions()
	}

	stream, err := w.cfg.Provider.StreamCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	var content string
	var toolCalls []types.ToolCall
	var usage *types.TokenUsage
	for chunk := range stream {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		if chunk.Content != "" {
			content += chunk.Content
			emit(types.NewContentEvent(chunk.Content, false))
		}
		if len(chunk.ToolCalls) > 0 {
			toolCalls = chunk.ToolCalls
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := types.NewAssistantMessage(content)
	msg.ToolCalls = toolCalls

	out := &graph.WorkerOutput{Message: msg}
	if usage != nil {
		out.Usage = *usage
	} else {
		out.Usage = w.estimateUsage(systemPrompt, trimmed, msg)
	}

	w.log.Debugf("generated %d chars, %d tool call(s), %d tokens",
		len(content), len(toolCalls), out.Usage.TotalTokens)
	return out, nil
}

// estimateUsage approximates token accounting client-side when the provider
// does not report usage on the stream.
func (w *Worker) estimateUsage(systemPrompt string, messages []*types.Message, response *types.Message) types.TokenUsage {
	est := w.cfg.Estimator
	count := func(s string) int {
		if est != nil {
			return est.CountTokens(s)
		}
		return (len(s) + 3) / 4
	}

	prompt := count(systemPrompt)
	for _, msg := range messages {
		prompt += count(msg.Content) + 4
	}
	completion := count(response.Content)
	for _, call := range response.ToolCalls {
		completion += count(call.Name) + count(call.Arguments)
	}
	return types.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// feedbackBlock renders the incorporate-feedback instruction appended on
// retries. This is the sole mechanism by which a retry differs from the
// first attempt.
func feedbackBlock(feedback string) string {
	return fmt.Sprintf(`

<feedback_on_previous_attempt>
Your previous response did not fully satisfy the user's success criteria.
Incorporate this feedback before producing your new response:

%s
</feedback_on_previous_attempt>`, feedback)
}
