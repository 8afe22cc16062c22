package llm

import (
	"context"
	"time"
)

// RetryPolicy bounds automatic retries at the invocation layer. It is
// independent of the turn-level iteration cap: it covers transient transport
// and API failures, not evaluator-driven rework.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; subsequent
	// attempts double it.
	BaseDelay time.Duration
}

// DefaultRetryPolicy is a small, fixed retry budget with backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// retryingProvider wraps a Provider with bounded retry on invocation failure.
type retryingProvider struct {
	inner  Provider
	policy RetryPolicy
}

// WithRetry wraps a provider so that failed invocations are retried with
// exponential backoff up to the policy's attempt budget. Exhausted retries
// surface the last error to the caller.
func WithRetry(inner Provider, policy RetryPolicy) Provider {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryingProvider{inner: inner, policy: policy}
}

func (r *retryingProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := r.backoff(ctx, attempt); err != nil {
			return nil, err
		}
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *retryingProvider) StreamCompletion(ctx context.Context, req *Request) (<-chan *StreamChunk, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := r.backoff(ctx, attempt); err != nil {
			return nil, err
		}
		stream, err := r.inner.StreamCompletion(ctx, req)
		if err == nil {
			return stream, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *retryingProvider) GetModel() string {
	return r.inner.GetModel()
}

// backoff sleeps before retry attempts. Attempt 0 returns immediately.
func (r *retryingProvider) backoff(ctx context.Context, attempt int) error {
	if attempt == 0 {
		return nil
	}
	delay := r.policy.BaseDelay << (attempt - 1)
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
