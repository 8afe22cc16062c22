// Package classify implements the intent classifier: a cheap, low-latency
// node that inspects the latest user message and decides whether a fast,
// reasoning-free path can answer it. Classification failure degrades to the
// full flow, never blocks the turn.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/llm"
	"github.com/entrhq/compass/pkg/logging"
	"github.com/entrhq/compass/pkg/types"
)

const classifierPrompt = `You classify a single user message for a CRM assistant.

Respond with ONLY a JSON object, no prose:
{"intent_type": "lookup" | "count" | "list" | "other",
 "entity_type": "individual" | "account" | "organization" | "contact" | "document" | null,
 "query": string | null}

Rules:
- "lookup": the user wants one specific record found by name or attribute.
  Set "query" to the search text.
- "count": the user asks how many records of a type exist.
- "list": the user asks to see all records of a type.
- Anything else, or any request needing reasoning, drafting, or multiple
  steps, is "other" with null entity_type and query.`

// Classifier asks a small model to classify the latest user message. It
// implements graph.IntentClassifier.
type Classifier struct {
	provider llm.Provider
	log      *logging.Logger
}

var _ graph.IntentClassifier = (*Classifier)(nil)

// New creates a model-backed classifier. The provider should be bound to a
// small, cheap model rather than the full reasoning model.
func New(provider llm.Provider) *Classifier {
	log, _ := logging.NewLogger("classify")
	return &Classifier{provider: provider, log: log}
}

// Classify returns the intent verdict for the latest user message, along
// with the invocation's token cost. Errors are returned for the driver to
// degrade; this method never fabricates a fast-path intent.
func (c *Classifier) Classify(ctx context.Context, lastUserMessage string) (*graph.Intent, types.TokenUsage, error) {
	if c.provider == nil {
		return nil, types.TokenUsage{}, fmt.Errorf("no classifier provider configured")
	}

	resp, err := c.provider.Complete(ctx, &llm.Request{
		SystemPrompt: classifierPrompt,
		Messages:     []*types.Message{types.NewUserMessage(lastUserMessage)},
		Params:       llm.GenerationParams{Temperature: 0, MaxOutputTokens: 128},
	})
	if err != nil {
		return nil, types.TokenUsage{}, fmt.Errorf("classifier invocation failed: %w", err)
	}

	intent, err := parseIntent(resp.Message.Content)
	if err != nil {
		c.log.Warnf("classifier produced unparseable output: %v", err)
		return nil, resp.Usage, err
	}
	return intent, resp.Usage, nil
}

// intentPayload mirrors the classifier's JSON contract.
type intentPayload struct {
	IntentType string  `json:"intent_type"`
	EntityType *string `json:"entity_type"`
	Query      *string `json:"query"`
}

// parseIntent extracts the JSON verdict from model output, tolerating
// surrounding prose or code fences.
func parseIntent(content string) (*graph.Intent, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in classifier output")
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("invalid classifier JSON: %w", err)
	}

	intent := &graph.Intent{Type: graph.IntentOther}
	switch graph.IntentType(payload.IntentType) {
	case graph.IntentLookup, graph.IntentCount, graph.IntentList:
		intent.Type = graph.IntentType(payload.IntentType)
	}
	if payload.EntityType != nil {
		intent.Entity = entityType(*payload.EntityType)
	}
	if payload.Query != nil {
		intent.Query = strings.TrimSpace(*payload.Query)
	}
	return intent, nil
}
