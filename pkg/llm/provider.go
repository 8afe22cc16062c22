// Package llm provides abstractions for LLM provider integration.
//
// Providers handle API communication with LLM services and return simple
// responses and stream chunks. This design keeps providers focused on LLM
// concerns without coupling them to orchestration-level events.
//
// The orchestration layer is responsible for:
// - Converting stream chunks to agent events
// - Managing conversation state and history
// - Interpreting tool-call requests
//
// This separation allows providers to be reusable outside the orchestration
// graph, testable independently, and simpler to implement.
package llm

import (
	"context"

	"github.com/entrhq/compass/pkg/types"
)

// GenerationParams are per-invocation model parameters.
type GenerationParams struct {
	// Temperature controls sampling randomness. Zero means deterministic
	// generation, used by tool-heavy specializations.
	Temperature float64

	// MaxOutputTokens bounds the completion length. Zero uses the provider
	// default.
	MaxOutputTokens int
}

// ToolDefinition describes a capability the model may request during a
// completion. Schema is a JSON Schema object for the tool's arguments.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Request is a single model invocation: a system prompt, the trimmed
// conversation window, an optional bound tool set, and generation parameters.
type Request struct {
	SystemPrompt string
	Messages     []*types.Message
	Tools        []ToolDefinition
	Params       GenerationParams
}

// Response is the result of a completed model invocation.
type Response struct {
	Message *types.Message
	Usage   types.TokenUsage
}

// StreamChunk is an incremental piece of a streaming completion.
type StreamChunk struct {
	// Role is set on the first chunk of a response.
	Role string

	// Content is a delta of response text.
	Content string

	// ToolCalls is populated on the final chunk when the model requested
	// tool invocations.
	ToolCalls []types.ToolCall

	// Usage is populated on the final chunk when the provider reports
	// token accounting.
	Usage *types.TokenUsage

	// Finished marks the last chunk of a successful stream.
	Finished bool

	// Error is set on error chunks. The channel is closed afterwards.
	Error error
}

// IsError returns true if this chunk carries a stream-time error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// ModelCloner is an optional interface providers can implement to support
// lightweight per-call model overrides without constructing a full second
// provider. The clone shares credentials and transport with the original.
type ModelCloner interface {
	CloneWithModel(model string) Provider
}

// Provider defines the interface for LLM integrations.
type Provider interface {
	// Complete sends a request to the LLM and returns the full response,
	// including any structured tool-call requests on the returned message.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// StreamCompletion sends a request to the LLM and streams back response
	// chunks. The channel is closed when streaming completes or an error
	// occurs; callers should read until close. Returns an error only if
	// streaming cannot be initiated; stream-time errors arrive as chunks
	// with Error set.
	StreamCompletion(ctx context.Context, req *Request) (<-chan *StreamChunk, error)

	// GetModel returns the model name being used.
	GetModel() string
}
