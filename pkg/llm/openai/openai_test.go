package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/compass/pkg/llm"
	"github.com/entrhq/compass/pkg/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider("test-key", WithBaseURL(server.URL), WithModel("test-model"))
	require.NoError(t, err)
	return p, server
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("")
	require.Error(t, err)
}

func TestNewProviderReadsKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	p, err := NewProvider("")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.GetModel())
}

func TestCloneWithModelSharesEndpoint(t *testing.T) {
	p, err := NewProvider("k", WithBaseURL("http://localhost:9"), WithModel("big"))
	require.NoError(t, err)

	clone := p.CloneWithModel("small")
	assert.Equal(t, "small", clone.GetModel())
	assert.Equal(t, "big", p.GetModel())
}

func TestCompleteDecodesResponse(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		fmt.Fprint(w, `{
			"choices":[{"message":{"role":"assistant","content":"hello there"}}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}
		}`)
	})

	resp, err := p.Complete(context.Background(), &llm.Request{
		SystemPrompt: "be helpful",
		Messages:     []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Message.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestCompleteDecodesToolCalls(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"choices":[{"message":{"role":"assistant","content":"",
				"tool_calls":[{"id":"call_1","function":{"name":"crm_lookup","arguments":"{\"query\":\"maya\"}"}}]}}],
			"usage":{"prompt_tokens":20,"completion_tokens":10,"total_tokens":30}
		}`)
	})

	resp, err := p.Complete(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("find maya")},
	})
	require.NoError(t, err)
	require.True(t, resp.Message.HasToolCalls())
	call := resp.Message.ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "crm_lookup", call.Name)
	assert.JSONEq(t, `{"query":"maya"}`, call.Arguments)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := p.Complete(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := p.Complete(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
}

func TestRequestBodyCarriesToolsAndHistory(t *testing.T) {
	var captured map[string]any
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})

	assistant := types.NewAssistantMessage("")
	assistant.ToolCalls = []types.ToolCall{{ID: "c1", Name: "echo", Arguments: `{"text":"x"}`}}
	_, err := p.Complete(context.Background(), &llm.Request{
		SystemPrompt: "system prompt",
		Messages: []*types.Message{
			types.NewUserMessage("hi"),
			assistant,
			types.NewToolMessage("c1", "echo", "x"),
		},
		Tools: []llm.ToolDefinition{{
			Name:        "echo",
			Description: "echoes",
			Schema:      map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 4)

	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])

	withCalls := messages[2].(map[string]any)
	assert.Equal(t, "assistant", withCalls["role"])
	require.Len(t, withCalls["tool_calls"].([]any), 1)

	toolMsg := messages[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "c1", toolMsg["tool_call_id"])

	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "echo", fn["name"])
}

func sseBody(events ...string) string {
	var out string
	for _, e := range events {
		out += "data: " + e + "\n\n"
	}
	return out + "data: [DONE]\n\n"
}

func TestStreamCompletionAssemblesChunks(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"role":"assistant","content":""}}]}`,
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
		))
	})

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	var content string
	var usage *types.TokenUsage
	var finished bool
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.Finished {
			finished = true
		}
	}
	assert.Equal(t, "Hello", content)
	assert.True(t, finished)
	require.NotNil(t, usage)
	assert.Equal(t, 11, usage.TotalTokens)
}

func TestStreamCompletionAccumulatesToolCallDeltas(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","function":{"name":"crm_lookup","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"maya\"}"}}]}}]}`,
		))
	})

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("find maya")},
	})
	require.NoError(t, err)

	var calls []types.ToolCall
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		if chunk.Finished {
			calls = chunk.ToolCalls
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "crm_lookup", calls[0].Name)
	assert.JSONEq(t, `{"query":"maya"}`, calls[0].Arguments)
}

func TestStreamCompletionSkipsCommentsAndMalformedLines(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, sseBody(`{"choices":[{"delta":{"role":"assistant","content":"ok"}}]}`))
	})

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	var content string
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
	}
	assert.Equal(t, "ok", content)
}

func TestStreamCompletionWithoutDoneStillFinishes(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"partial\"}}]}\n\n")
	})

	stream, err := p.StreamCompletion(context.Background(), &llm.Request{
		Messages: []*types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	var content string
	var finished bool
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Finished {
			finished = true
		}
	}
	assert.Equal(t, "partial", content)
	assert.True(t, finished)
}
