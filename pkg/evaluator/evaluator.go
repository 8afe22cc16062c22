// Package evaluator judges worker responses against the turn's success
// criteria and produces structured verdicts that drive the bounded retry
// loop.
package evaluator

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

// passingScore is the leniency floor: a response that scores at or above
// this and addresses the primary request passes even when the model marks
// individual criteria unmet.
const passingScore = 60

// Config constructs an evaluator specialization.
type Config struct {
	// Role is the worker variant this evaluator is paired with.
	Role string

	// Provider is the judging model client.
	Provider llm.Provider

	// DomainRubric is appended to the baseline rubric. Optional.
	DomainRubric string

	// MaxOutputTokens bounds the verdict payload. Zero uses a default.
	MaxOutputTokens int
}

// Evaluator is a concrete judge for one worker variant.
type Evaluator struct {
	cfg Config
	log *logging.Logger
}

var _ graph.Evaluator = (*Evaluator)(nil)

// New creates an evaluator from the given configuration.
func New(cfg Config) (*Evaluator, error) {
	if cfg.Role == "" {
		return nil, fmt.Errorf("evaluator role is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("evaluator %q: LLM provider is required", cfg.Role)
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 512
	}
	log, _ := logging.NewLogger("evaluator." + cfg.Role)
	return &Evaluator{cfg: cfg, log: log}, nil
}

// Role returns the worker variant this evaluator is paired with.
func (e *Evaluator) Role() string {
	return e.cfg.Role
}

// Evaluate judges the latest assistant response. Errors are returned for the
// caller to degrade; this method never fabricates a verdict on failure.
func (e *Evaluator) Evaluate(ctx context.Context, state *graph.ConversationState) (*graph.Verdict, types.TokenUsage, error) {
	response := state.LastAssistantMessage()
	if response == nil {
		return nil, types.TokenUsage{}, fmt.Errorf("no assistant response to evaluate")
	}
	request := state.LastUserMessage()
	if request == nil {
		return nil, types.TokenUsage{}, fmt.Errorf("no user request to evaluate against")
	}

	req := &llm.Request{
		SystemPrompt: e.buildPrompt(state),
		Messages: []*types.Message{
			types.NewUserMessage(evaluationInput(request.Content, response.Content)),
		},
		Params: llm.GenerationParams{
			Temperature:     0,
			MaxOutputTokens: e.cfg.MaxOutputTokens,
		},
	}

	resp, err := e.cfg.Provider.Complete(ctx, req)
	if err != nil {
		return nil, types.TokenUsage{}, fmt.Errorf("evaluation failed: %w", err)
	}

	verdict, err := parseVerdict(resp.Message.Content)
	if err != nil {
		return nil, resp.Usage, err
	}

	e.log.Debugf("verdict for %s: met=%v userInput=%v score=%d",
		e.cfg.Role, verdict.SuccessCriteriaMet, verdict.UserInputNeeded, verdict.Score)
	return verdict, resp.Usage, nil
}

// buildPrompt assembles the judging prompt: baseline rubric, domain rubric,
// and the turn's success criteria when present.
func (e *Evaluator) buildPrompt(state *graph.ConversationState) string {
	var b strings.Builder
	b.WriteString(baselineRubric)
	if e.cfg.DomainRubric != "" {
		b.WriteString("\n\nDomain-specific judging rules:\n")
		b.WriteString(e.cfg.DomainRubric)
	}
	if state.SuccessCriteria != "" {
		b.WriteString(fmt.Sprintf("\n\n<success_criteria>\n%s\n</success_criteria>", state.SuccessCriteria))
	}
	b.WriteString("\n\n")
	b.WriteString(verdictFormat)
	return b.String()
}

func evaluationInput(request, response string) string {
	return fmt.Sprintf("<user_request>\n%s\n</user_request>\n\n<assistant_response>\n%s\n</assistant_response>",
		request, response)
}

// verdictPayload mirrors the JSON contract in verdictFormat.
type verdictPayload struct {
	Feedback                string `json:"feedback"`
	SuccessCriteriaMet      bool   `json:"success_criteria_met"`
	UserInputNeeded         bool   `json:"user_input_needed"`
	Score                   int    `json:"score"`
	AddressedPrimaryRequest bool   `json:"addressed_primary_request"`
}

// parseVerdict extracts the JSON verdict from the model output, tolerating
// surrounding prose and code fences. A high-scoring response that addressed
// the primary request passes even when the model withheld the met flag.
func parseVerdict(content string) (*graph.Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON verdict in evaluator output")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("malformed evaluator verdict: %w", err)
	}

	met := payload.SuccessCriteriaMet
	if !met && payload.Score >= passingScore && payload.AddressedPrimaryRequest {
		met = true
	}
	return &graph.Verdict{
		Feedback:           payload.Feedback,
		SuccessCriteriaMet: met,
		UserInputNeeded:    payload.UserInputNeeded,
		Score:              payload.Score,
	}, nil
}
