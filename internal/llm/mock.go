package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MockResponse is one scripted reply: Content, or Err when set.
type MockResponse struct {
	Content json.RawMessage
	Err     error
}

// MockProvider answers from a script, one entry per call, and keeps every
// prompt it was sent. Once the script runs out it is Unreachable.
type MockProvider struct {
	mu      sync.Mutex
	script  []MockResponse
	prompts []Prompt
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, p)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.script) == 0 {
		return nil, unreachable(errors.New("mock script exhausted"))
	}

	next := m.script[0]
	m.script = m.script[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	if err := conform(p.Schema, next.Content); err != nil {
		return nil, err
	}
	return &Completion{Body: next.Content, Model: "mock"}, nil
}

func (m *MockProvider) Model() string { return "mock" }

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompt returns the i-th prompt received.
func (m *MockProvider) Prompt(i int) Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i]
}

// SlowProvider never answers before its context ends. Timeout tests use it
// as a hung backend.
type SlowProvider struct{}

func (SlowProvider) Complete(ctx context.Context, _ Prompt) (*Completion, error) {
	<-ctx.Done()
	return nil, unreachable(ctx.Err())
}

func (SlowProvider) Model() string { return "slow" }
