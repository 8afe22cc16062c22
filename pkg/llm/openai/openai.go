// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// The provider speaks the chat completions API directly over HTTP so that it
// remains compatible with OpenAI-compatible gateways and local models, while
// using the openai-go SDK's message parameter types for request construction.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/entrhq/compass/pkg/llm"
	"github.com/entrhq/compass/pkg/types"
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"
)

// Provider implements the LLM provider interface for OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

var _ llm.Provider = (*Provider)(nil)

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client, e.g. with timeouts configured.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY
// environment variable. If no base URL is provided via WithBaseURL, the
// OPENAI_BASE_URL environment variable is checked before falling back to the
// public API.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimSuffix(envBaseURL, "/")
		}
	}

	return p, nil
}

// CloneWithModel returns a shallow copy of p configured to use the given
// model. The clone shares the same HTTP client (connection pool), API key,
// and base URL as the original. It implements llm.ModelCloner.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p
	clone.model = model
	return &clone
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// buildRequestBody assembles the chat completions request payload.
func (p *Provider) buildRequestBody(req *llm.Request, stream bool) map[string]any {
	body := map[string]any{
		"model":    p.model,
		"messages": convertMessages(req.SystemPrompt, req.Messages),
	}
	if stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}
	if req.Params.Temperature > 0 {
		body["temperature"] = req.Params.Temperature
	} else {
		body["temperature"] = 0.0
	}
	if req.Params.MaxOutputTokens > 0 {
		body["max_tokens"] = req.Params.MaxOutputTokens
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Schema,
				},
			})
		}
		body["tools"] = tools
	}
	return body
}

func (p *Provider) sendRequest(ctx context.Context, body map[string]any, stream bool) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	return resp, nil
}

// completionPayload mirrors the subset of the chat completions response the
// orchestration layer needs.
type completionPayload struct {
	Choices []struct {
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a request to the API and returns the full response,
// including structured tool-call requests if the model produced any.
func (p *Provider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := p.sendRequest(ctx, p.buildRequestBody(req, false), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload completionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("API response contained no choices")
	}

	choice := payload.Choices[0]
	msg := types.NewAssistantMessage(choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &llm.Response{
		Message: msg,
		Usage: types.TokenUsage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}, nil
}

// StreamCompletion sends a request to the API and streams back response
// chunks. The channel is closed when streaming completes or an error occurs.
//
// This implementation parses SSE events directly, which provides better
// compatibility with OpenAI-compatible APIs that may include SSE comments or
// have slight format variations.
func (p *Provider) StreamCompletion(ctx context.Context, req *llm.Request) (<-chan *llm.StreamChunk, error) {
	resp, err := p.sendRequest(ctx, p.buildRequestBody(req, true), true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go p.processStreamResponse(ctx, resp, chunks)
	return chunks, nil
}

// toolCallAccumulator assembles streamed tool-call argument deltas into
// complete invocations, keyed by the provider's chunk index.
type toolCallAccumulator struct {
	order []int
	calls map[int]*types.ToolCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*types.ToolCall)}
}

func (a *toolCallAccumulator) add(index int, id, name, argsDelta string) {
	call, ok := a.calls[index]
	if !ok {
		call = &types.ToolCall{}
		a.calls[index] = call
		a.order = append(a.order, index)
	}
	if id != "" {
		call.ID = id
	}
	if name != "" {
		call.Name = name
	}
	call.Arguments += argsDelta
}

func (a *toolCallAccumulator) result() []types.ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	out := make([]types.ToolCall, 0, len(a.order))
	for _, i := range a.order {
		out = append(out, *a.calls[i])
	}
	return out
}

// streamChunkPayload mirrors the SSE chunk format.
type streamChunkPayload struct {
	Choices []struct {
		Delta struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	firstChunk := true
	acc := newToolCallAccumulator()
	var usage *types.TokenUsage

	for scanner.Scan() {
		line := scanner.Text()
		if !isValidSSELine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			p.sendChunk(ctx, chunks, &llm.StreamChunk{
				Finished:  true,
				ToolCalls: acc.result(),
				Usage:     usage,
			})
			return
		}

		var payload streamChunkPayload
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			continue // Skip malformed chunks silently
		}

		if payload.Usage != nil {
			usage = &types.TokenUsage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
				TotalTokens:      payload.Usage.TotalTokens,
			}
		}

		if len(payload.Choices) == 0 {
			continue
		}

		delta := payload.Choices[0].Delta
		chunk := &llm.StreamChunk{}

		if firstChunk && delta.Role != "" {
			chunk.Role = delta.Role
			firstChunk = false
		}
		chunk.Content = delta.Content

		for _, tc := range delta.ToolCalls {
			acc.add(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
		}

		if chunk.Role != "" || chunk.Content != "" {
			if !p.sendChunk(ctx, chunks, chunk) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- &llm.StreamChunk{Error: fmt.Errorf("stream read error: %w", err)}
		return
	}

	// Stream ended without a [DONE] marker; still deliver what we have.
	p.sendChunk(ctx, chunks, &llm.StreamChunk{
		Finished:  true,
		ToolCalls: acc.result(),
		Usage:     usage,
	})
}

func (p *Provider) sendChunk(ctx context.Context, chunks chan<- *llm.StreamChunk, chunk *llm.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		chunks <- &llm.StreamChunk{Error: ctx.Err()}
		return false
	}
}

// isValidSSELine checks if a line is a valid SSE data line.
func isValidSSELine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

// convertMessages converts our Message format to the chat completions wire
// format. Plain messages use the openai-go SDK's parameter unions; tool
// results and assistant messages carrying tool calls are built explicitly
// since they need tool_call_id linkage.
func convertMessages(systemPrompt string, messages []*types.Message) []any {
	out := make([]any, 0, len(messages)+1)

	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case types.RoleAssistant:
			if msg.HasToolCalls() {
				out = append(out, assistantWithToolCalls(msg))
				continue
			}
			out = append(out, openai.AssistantMessage(msg.Content))
		case types.RoleTool:
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": msg.ToolCallID,
				"content":      msg.Content,
			})
		default:
			// Unknown roles degrade to user messages
			out = append(out, openai.UserMessage(msg.Content))
		}
	}

	return out
}

func assistantWithToolCalls(msg *types.Message) map[string]any {
	calls := make([]map[string]any, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, map[string]any{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": tc.Arguments,
			},
		})
	}
	m := map[string]any{
		"role":       "assistant",
		"tool_calls": calls,
	}
	if msg.Content != "" {
		m["content"] = msg.Content
	}
	return m
}
