// Package history reduces a conversation's accumulated message list to fit a
// token budget before each model call.
package history

import (
	"github.com/entrhq/compass/pkg/types"
)

// truncationMarker is appended to a message whose content had to be cut to
// fit the budget.
const truncationMarker = "\n[... truncated to fit context budget]"

// messageOverhead approximates per-message framing tokens, matching the
// tokenizer package's accounting.
const messageOverhead = 4

// Estimator counts tokens in text. The estimate need not be exact, only
// monotonic and conservative enough to avoid provider-side rejection.
type Estimator interface {
	CountTokens(text string) int
}

// charEstimator is the fallback estimator: one token per four characters.
type charEstimator struct{}

func (charEstimator) CountTokens(text string) int {
	return (len(text) + 3) / 4
}

// Trim returns the suffix of messages whose estimated token size fits within
// maxTokens, dropping oldest-first. The most recent message is always
// retained: if it alone exceeds the budget its content is truncated instead
// of the message being dropped. Trim never mutates its input.
func Trim(messages []*types.Message, maxTokens int, est Estimator) []*types.Message {
	if len(messages) == 0 {
		return nil
	}
	if est == nil {
		est = charEstimator{}
	}

	newest := messages[len(messages)-1]
	newestCost := messageCost(newest, est)
	if newestCost > maxTokens {
		return []*types.Message{truncate(newest, maxTokens, est)}
	}

	// Walk backwards from the newest message, keeping as many recent
	// messages as fit.
	budget := maxTokens - newestCost
	start := len(messages) - 1
	for i := len(messages) - 2; i >= 0; i-- {
		cost := messageCost(messages[i], est)
		if cost > budget {
			break
		}
		budget -= cost
		start = i
	}

	trimmed := make([]*types.Message, len(messages)-start)
	copy(trimmed, messages[start:])
	return trimmed
}

func messageCost(msg *types.Message, est Estimator) int {
	cost := est.CountTokens(msg.Content) + messageOverhead
	for _, call := range msg.ToolCalls {
		cost += est.CountTokens(call.Name) + est.CountTokens(call.Arguments)
	}
	return cost
}

// truncate cuts a message's content until its estimated cost fits the budget.
// The head of the content is kept. The original message is not modified.
func truncate(msg *types.Message, maxTokens int, est Estimator) *types.Message {
	out := *msg
	content := msg.Content

	// Binary-search the longest prefix that fits. The estimator is
	// monotonic in content length, so this converges.
	lo, hi := 0, len(content)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		candidate := out
		candidate.Content = content[:mid] + truncationMarker
		if messageCost(&candidate, est) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	if lo == 0 {
		out.Content = ""
	} else {
		out.Content = content[:lo] + truncationMarker
	}
	return &out
}
