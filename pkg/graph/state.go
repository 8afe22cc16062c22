package graph

import (
	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/types"
)

// ConversationState is the single mutable unit threaded through every node
// for one turn. It is created at turn start, seeded from durable history, and
// discarded at turn end with its terminal messages persisted externally.
//
// The graph driver is the only writer: nodes return typed results that the
// driver merges in. Messages are append-only within a turn and never
// reordered.
type ConversationState struct {
	// Messages is the ordered conversation history for this turn.
	Messages []*types.Message

	// ResumeContext and ResumeContextConcise are injected read-only
	// reference text available to workers.
	ResumeContext        string
	ResumeContextConcise string

	// SuccessCriteria is the turn's free-text goal description, derived
	// once per turn and immutable thereafter.
	SuccessCriteria string

	// RouteToAgent is the chosen worker variant, set once by the triage
	// router and read by the dispatch step.
	RouteToAgent string

	// Fast-path fields, populated by the intent classifier and fast-path
	// handlers. Mutually exclusive with the worker/evaluator path.
	FastPathIntent   IntentType
	LookupEntityType crm.EntityType
	LookupQuery      string
	LookupResult     string

	// FeedbackOnWork carries the prior evaluator verdict's feedback. When
	// present, a worker must incorporate it before producing a new
	// response. This is the sole mechanism by which a retry differs from
	// the first attempt.
	FeedbackOnWork string

	// TokenUsage accumulates token cost across every node invocation in
	// the turn.
	TokenUsage types.TokenUsage

	// CurrentNode and IterationCount are execution bookkeeping.
	// IterationCount increments once per worker→evaluator retry cycle and
	// bounds the feedback loop.
	CurrentNode    NodeID
	IterationCount int

	// lastVerdict holds the most recent evaluator verdict for routing.
	// Never persisted beyond the turn.
	lastVerdict *Verdict

	// retryArmed records whether the last evaluation scheduled another
	// worker attempt (feedback set, iteration count bumped).
	retryArmed bool

	// toolCycles counts worker→tools round trips this turn. The driver's
	// circuit breaker reads it to bound the tool loop.
	toolCycles int
}

// NewConversationState creates turn state seeded from durable history.
func NewConversationState(messages []*types.Message) *ConversationState {
	return &ConversationState{
		Messages:    messages,
		CurrentNode: NodeClassify,
	}
}

// LastMessage returns the most recent message, or nil for an empty history.
func (s *ConversationState) LastMessage() *types.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastUserMessage returns the most recent user-role message, or nil.
func (s *ConversationState) LastUserMessage() *types.Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == types.RoleUser {
			return s.Messages[i]
		}
	}
	return nil
}

// LastAssistantMessage returns the most recent assistant-role message, or nil.
func (s *ConversationState) LastAssistantMessage() *types.Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == types.RoleAssistant {
			return s.Messages[i]
		}
	}
	return nil
}

// FinalAnswer returns the text the turn delivers to the caller: the fast-path
// result when one was produced, otherwise the latest assistant content.
func (s *ConversationState) FinalAnswer() string {
	if s.LookupResult != "" {
		return s.LookupResult
	}
	if msg := s.LastAssistantMessage(); msg != nil {
		return msg.Content
	}
	return ""
}

// beginTurn clears per-turn bookkeeping so a state can be reused across
// turns. Accumulated messages and token usage are kept. Driver use only.
func (s *ConversationState) beginTurn() {
	s.RouteToAgent = ""
	s.LookupResult = ""
	s.FeedbackOnWork = ""
	s.IterationCount = 0
	s.lastVerdict = nil
	s.retryArmed = false
	s.toolCycles = 0
	s.CurrentNode = NodeClassify
}

// append adds messages produced by a node. Driver use only.
func (s *ConversationState) append(messages ...*types.Message) {
	s.Messages = append(s.Messages, messages...)
}

// addUsage accumulates a node invocation's token cost. Driver use only.
func (s *ConversationState) addUsage(usage types.TokenUsage) {
	s.TokenUsage.Add(usage)
}
