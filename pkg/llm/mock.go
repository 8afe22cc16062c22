package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/compass/pkg/types"
)

// MockProvider is a scripted Provider for tests. Each call consumes the next
// entry from Responses (or Errors at the same index, if set). Requests are
// recorded for assertions.
type MockProvider struct {
	mu        sync.Mutex
	Responses []*Response
	Errors    []error
	Requests  []*Request
	Model     string

	calls int
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) next(req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	i := m.calls
	m.calls++

	if i < len(m.Errors) && m.Errors[i] != nil {
		return nil, m.Errors[i]
	}
	if i >= len(m.Responses) {
		return nil, fmt.Errorf("mock provider: no scripted response for call %d", i+1)
	}
	return m.Responses[i], nil
}

// CallCount returns the number of invocations so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.next(req)
}

func (m *MockProvider) StreamCompletion(ctx context.Context, req *Request) (<-chan *StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := m.next(req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *StreamChunk, 4)
	go func() {
		defer close(chunks)
		chunks <- &StreamChunk{Role: string(types.RoleAssistant)}
		if resp.Message.Content != "" {
			chunks <- &StreamChunk{Content: resp.Message.Content}
		}
		final := &StreamChunk{Finished: true}
		if len(resp.Message.ToolCalls) > 0 {
			final.ToolCalls = resp.Message.ToolCalls
		}
		if !resp.Usage.IsZero() {
			usage := resp.Usage
			final.Usage = &usage
		}
		chunks <- final
	}()
	return chunks, nil
}

func (m *MockProvider) GetModel() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}
