package types

// TokenUsage contains token usage statistics from an LLM API call.
// Totals are additive across every node invocation in a turn.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the input/prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens in the generated completion.
	CompletionTokens int

	// TotalTokens is the total number of tokens used (prompt + completion).
	TotalTokens int
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// IsZero reports whether no tokens have been recorded.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}
