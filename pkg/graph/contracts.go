package graph

import (
	"context"

	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/types"
)

// Worker variant identifiers. The triage router chooses one of these and the
// dispatch step resolves it to a registered worker.
const (
	RoleGeneral     = "worker"
	RoleJobSearch   = "job_search"
	RoleCoverLetter = "cover_letter_writer"
	RoleCRM         = "crm_worker"
	RoleScraper     = "scraper"
)

// IntentType is the intent classifier's coarse verdict on the latest user
// message.
type IntentType string

const (
	IntentLookup IntentType = "lookup"
	IntentCount  IntentType = "count"
	IntentList   IntentType = "list"
	IntentOther  IntentType = "other"
)

// Intent is the classifier's structured output.
type Intent struct {
	Type   IntentType
	Entity crm.EntityType
	Query  string
}

// IntentClassifier inspects the latest user message and decides whether a
// fast, reasoning-free path can answer it. Implementations must be cheap and
// low-latency; the driver degrades any failure to IntentOther.
type IntentClassifier interface {
	Classify(ctx context.Context, lastUserMessage string) (*Intent, types.TokenUsage, error)
}

// RouteFunc decides which worker variant should own a request that did not
// qualify for the fast path. It is a deterministic, zero-token function of
// the message window.
type RouteFunc func(messages []*types.Message) string

// WorkerOutput is a worker's typed partial update: exactly one new assistant
// message plus the token cost of the invocation.
type WorkerOutput struct {
	Message *types.Message
	Usage   types.TokenUsage
}

// Worker produces a candidate response, optionally requesting tool calls,
// given a role-specific prompt and trimmed history.
type Worker interface {
	// Role returns the variant identifier this worker serves.
	Role() string

	// SkipsEvaluation reports whether this variant routes directly to turn
	// end when no tool call is present, bypassing the evaluator.
	SkipsEvaluation() bool

	// Execute runs one generation pass. Partial output is streamed through
	// emit; the returned message is the complete response.
	Execute(ctx context.Context, state *ConversationState, emit types.EventHandler) (*WorkerOutput, error)
}

// Verdict is an evaluator's judgment of the latest worker response. Produced
// fresh on each evaluation.
type Verdict struct {
	Feedback           string
	SuccessCriteriaMet bool
	UserInputNeeded    bool
	Score              int
}

// OptimisticVerdict is the default applied when evaluation fails: a failed
// evaluator must never block the turn.
func OptimisticVerdict() *Verdict {
	return &Verdict{SuccessCriteriaMet: true, Score: 100}
}

// Evaluator judges whether a worker's latest response satisfies the turn's
// success criteria.
type Evaluator interface {
	// Role returns the worker variant this evaluator is paired with.
	Role() string

	// Evaluate produces a verdict plus the token cost of the invocation.
	Evaluate(ctx context.Context, state *ConversationState) (*Verdict, types.TokenUsage, error)
}

// ToolExecutor resolves and invokes pending tool calls, returning one
// tool-role message per call. Failures are encoded in the messages, never
// returned as errors.
type ToolExecutor interface {
	ExecuteAll(ctx context.Context, calls []types.ToolCall, emit types.EventHandler) []*types.Message
}
