// Package narrative provides the LLM side of the story engine. It defines a
// provider-agnostic LLM interface with OpenAI-compatible implementations and a
// deterministic mock for testing, plus the registry of prompt templates that
// carry the story's narrative contract to each backend.
package narrative

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// Prompt is a rendered template ready to be sent to a backend.
type Prompt struct {
	// System is the instruction sent as a separate system message.
	// Empty for instruct-style templates, which embed it in Text.
	System string

	// Text is the rendered template body.
	Text string
}

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-4o", "gpt-3.5-turbo-instruct")
	Model string

	// Temperature controls randomness (0.0 = model default, 2.0 = very random)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// StopSequences end generation when the model emits any of them
	StopSequences []string

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL points the client at an OpenAI-compatible endpoint (empty = OpenAI)
	BaseURL string

	// Timeout bounds a single generation request (0 = DefaultTimeout)
	Timeout time.Duration
}

// DefaultTimeout is the deadline applied to a generation request when the
// config does not set one.
const DefaultTimeout = 2 * time.Minute

// DefaultLLMConfig returns sensible defaults for story generation.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o",
		Temperature: 1,
		MaxTokens:   1000,
		Timeout:     DefaultTimeout,
	}
}
