// Package tokenizer provides client-side token counting for budget
// enforcement. It uses tiktoken's cl100k_base encoding when available, and
// falls back to a conservative character-based estimate otherwise, so budget
// checks keep working offline.
package tokenizer

import (
	"github.com/entrhq/compass/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead approximates the per-message framing tokens the API adds
// around role and content.
const messageOverhead = 4

// Tokenizer counts tokens in text and messages.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer backed by the cl100k_base encoding. If the encoding
// cannot be loaded the returned tokenizer falls back to character-based
// estimation; the error is returned so callers can log the degradation.
func New() (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Tokenizer{}, err
	}
	return &Tokenizer{encoding: encoding}, nil
}

// CountTokens returns the token count for a string. The fallback estimate of
// one token per four characters is intentionally conservative: it only needs
// to be monotonic and roughly proportional, not exact.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.encoding == nil {
		return (len(text) + 3) / 4
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessageTokens returns the token count for a single message, including
// framing overhead and any tool-call arguments.
func (t *Tokenizer) CountMessageTokens(msg *types.Message) int {
	count := t.CountTokens(msg.Content) + messageOverhead
	for _, call := range msg.ToolCalls {
		count += t.CountTokens(call.Name) + t.CountTokens(call.Arguments)
	}
	return count
}

// CountMessagesTokens returns the total token count for a message list.
func (t *Tokenizer) CountMessagesTokens(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += t.CountMessageTokens(msg)
	}
	return total
}
