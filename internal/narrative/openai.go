package narrative

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAILLM implements the LLM interface using the chat completions API.
// Any OpenAI-compatible provider works when BaseURL is set.
type OpenAILLM struct {
	client openai.Client
	config LLMConfig
}

// NewOpenAILLM creates a chat-completions backed LLM implementation.
// Returns an error if the API key or model is missing.
func NewOpenAILLM(config LLMConfig) (*OpenAILLM, error) {
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}

	return &OpenAILLM{
		client: client,
		config: config,
	}, nil
}

// Generate sends the prompt to the chat completions endpoint and returns the generated text.
func (o *OpenAILLM) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if prompt.Text == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.Text))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.config.Model),
		Messages: messages,
	}

	// Set optional parameters if configured
	if o.config.Temperature > 0 {
		params.Temperature = openai.Float(float64(o.config.Temperature))
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}
	if len(o.config.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: o.config.StopSequences,
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	return completion.Choices[0].Message.Content, nil
}

// CompletionLLM implements the LLM interface using the legacy text
// completions API, which instruction-tuned models expect.
type CompletionLLM struct {
	client openai.Client
	config LLMConfig
}

// NewCompletionLLM creates a text-completions backed LLM implementation.
func NewCompletionLLM(config LLMConfig) (*CompletionLLM, error) {
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}

	return &CompletionLLM{
		client: client,
		config: config,
	}, nil
}

// Generate sends the rendered prompt as a single completion request.
// A non-empty System is prepended to the text.
func (c *CompletionLLM) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if prompt.Text == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	text := prompt.Text
	if prompt.System != "" {
		text = prompt.System + "\n\n" + text
	}

	params := openai.CompletionNewParams{
		Model: openai.CompletionNewParamsModel(c.config.Model),
		Prompt: openai.CompletionNewParamsPromptUnion{
			OfString: openai.String(text),
		},
	}
	if c.config.Temperature > 0 {
		params.Temperature = openai.Float(float64(c.config.Temperature))
	}
	if c.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.config.MaxTokens))
	}
	if len(c.config.StopSequences) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{
			OfStringArray: c.config.StopSequences,
		}
	}

	completion, err := c.client.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	return completion.Choices[0].Text, nil
}

func newClient(config LLMConfig) (openai.Client, error) {
	if config.APIKey == "" {
		return openai.Client{}, fmt.Errorf("%w: missing API key", ErrInvalidConfig)
	}
	if config.Model == "" {
		return openai.Client{}, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Turns are never retried.
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return openai.NewClient(opts...), nil
}
