package backend

import (
	"fmt"

	"github.com/Yates-Labs/odyssey/internal/config"
	"github.com/Yates-Labs/odyssey/internal/narrative"
)

// ClientFactory builds the LLM client for a definition. It must not send a
// generation request.
type ClientFactory func(def Definition, cfg narrative.LLMConfig) (narrative.LLM, error)

// OpenAIClientFactory builds chat or completion clients with openai-go.
func OpenAIClientFactory(def Definition, cfg narrative.LLMConfig) (narrative.LLM, error) {
	switch def.Kind {
	case KindChat:
		return narrative.NewOpenAILLM(cfg)
	case KindCompletion:
		return narrative.NewCompletionLLM(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported client kind %q", narrative.ErrInvalidConfig, def.Kind)
	}
}

// Selector resolves backend tokens into profiles.
type Selector struct {
	config  *config.Config
	factory ClientFactory
}

// NewSelector creates a selector. A nil factory defaults to OpenAIClientFactory.
func NewSelector(cfg *config.Config, factory ClientFactory) *Selector {
	if factory == nil {
		factory = OpenAIClientFactory
	}
	return &Selector{config: cfg, factory: factory}
}

// Select builds the profile for token. Unknown tokens return
// ErrUnknownBackend without touching configuration or building a client.
// A missing secret for the chosen backend returns config.ErrConfiguration.
func (s *Selector) Select(token string) (*Profile, error) {
	def, ok := Lookup(token)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, token)
	}

	tmpl, err := narrative.GetTemplate(def.ID)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.config.Secret(def.SecretEnv)
	if err != nil {
		return nil, err
	}

	llmConfig := narrative.LLMConfig{
		Model:         def.Model,
		Temperature:   def.Temperature,
		MaxTokens:     def.MaxTokens,
		StopSequences: tmpl.Stop(),
		APIKey:        apiKey,
		BaseURL:       def.BaseURL,
		Timeout:       s.config.Timeout,
	}
	applyOverride(&llmConfig, s.config.Backends[def.ID])

	llm, err := s.factory(def, llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s client: %w", def.ID, err)
	}

	return &Profile{
		Token:    def.Token,
		ID:       def.ID,
		Name:     def.Name,
		Template: tmpl,
		Config:   llmConfig,
		LLM:      llm,
	}, nil
}

func applyOverride(cfg *narrative.LLMConfig, o config.BackendOverride) {
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.Temperature != nil {
		cfg.Temperature = *o.Temperature
	}
	if o.MaxTokens > 0 {
		cfg.MaxTokens = o.MaxTokens
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if len(o.Stop) > 0 {
		cfg.StopSequences = append([]string(nil), o.Stop...)
	}
}
