package narrative

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrGenerationFailed = errors.New("story generation failed")

	// ErrTimeout reports a generation request that outlived its deadline.
	// It also matches ErrLLMFailed.
	ErrTimeout = fmt.Errorf("%w: deadline exceeded", ErrLLMFailed)
)

// Reply is a single backend response together with its provenance.
type Reply struct {
	Text        string        `json:"text"`
	Model       string        `json:"model"`
	GeneratedAt time.Time     `json:"generated_at"`
	Latency     time.Duration `json:"latency"`
}

// Generator invokes an LLM on an already-rendered prompt under a deadline.
type Generator struct {
	llm    LLM
	config LLMConfig
}

// NewGenerator creates a generator with the given LLM implementation.
func NewGenerator(llm LLM, config LLMConfig) *Generator {
	return &Generator{
		llm:    llm,
		config: config,
	}
}

// Model returns the model identifier the generator was configured with.
func (g *Generator) Model() string {
	return g.config.Model
}

// Generate invokes the LLM with the prompt. The call is cancelled once the
// configured timeout elapses and the error then matches ErrTimeout.
func (g *Generator) Generate(ctx context.Context, prompt Prompt) (*Reply, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}
	if prompt.Text == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}

	timeout := g.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := g.llm.Generate(callCtx, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		if errors.Is(err, ErrLLMFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	return &Reply{
		Text:        text,
		Model:       g.config.Model,
		GeneratedAt: time.Now(),
		Latency:     time.Since(start),
	}, nil
}
