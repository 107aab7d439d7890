package narrative

import (
	"context"
	"fmt"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
// It replays scripted responses in order.
type MockLLM struct {
	// Responses are returned one per call. Once exhausted, the last one repeats.
	// If empty, a default response is generated from the call count.
	Responses []string

	// Error, if set, is returned by Generate instead of a response.
	Error error

	// Block makes Generate wait for context cancellation before returning.
	Block bool

	mu      sync.Mutex
	prompts []Prompt
}

// NewMockLLM creates a mock LLM that replays the given responses.
func NewMockLLM(responses ...string) *MockLLM {
	return &MockLLM{Responses: responses}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate records the prompt and returns the next scripted response.
func (m *MockLLM) Generate(ctx context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	call := len(m.prompts)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	if m.Error != nil {
		return "", m.Error
	}

	if len(m.Responses) == 0 {
		return fmt.Sprintf("Turn %d of the voyage. Where do you steer the ship?", call), nil
	}
	if call > len(m.Responses) {
		return m.Responses[len(m.Responses)-1], nil
	}
	return m.Responses[call-1], nil
}

// Prompts returns every prompt received so far, oldest first.
func (m *MockLLM) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastPrompt returns the most recent prompt, or the zero Prompt.
func (m *MockLLM) LastPrompt() Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return Prompt{}
	}
	return m.prompts[len(m.prompts)-1]
}
