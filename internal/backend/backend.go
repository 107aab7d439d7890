// Package backend maps the operator's discrete backend choice to an
// immutable profile: prompt template, model parameters and a ready client.
package backend

import (
	"fmt"
	"strings"

	"github.com/Yates-Labs/odyssey/internal/config"
	"github.com/Yates-Labs/odyssey/internal/narrative"
)

// ErrUnknownBackend is returned for a token outside the enumeration.
var ErrUnknownBackend = narrative.ErrUnknownBackend

// Client kinds a backend can be served by.
const (
	KindChat       = "chat"
	KindCompletion = "completion"
)

// Definition is the static description of one selectable backend.
type Definition struct {
	Token       string
	ID          string
	Name        string
	Kind        string
	Model       string
	BaseURL     string
	SecretEnv   string
	Temperature float32
	MaxTokens   int
}

// Definitions is the closed enumeration of backends, in menu order.
var Definitions = []Definition{
	{
		Token:       "1",
		ID:          "chat",
		Name:        "OpenAI GPT-4o",
		Kind:        KindChat,
		Model:       "gpt-4o",
		SecretEnv:   config.EnvOpenAIKey,
		Temperature: 1,
		MaxTokens:   1000,
	},
	{
		Token:     "2",
		ID:        "instruct",
		Name:      "OpenAI GPT-3.5 Turbo Instruct",
		Kind:      KindCompletion,
		Model:     "gpt-3.5-turbo-instruct",
		SecretEnv: config.EnvOpenAIKey,
		MaxTokens: 1000,
	},
	{
		Token:     "3",
		ID:        "mistral",
		Name:      "Mistral Mixtral 8x7B",
		Kind:      KindChat,
		Model:     "open-mixtral-8x7b",
		BaseURL:   "https://api.mistral.ai/v1",
		SecretEnv: config.EnvMistralKey,
		MaxTokens: 1000,
	},
}

// Profile is the backend bound for a run. It is never mutated after Select.
type Profile struct {
	Token    string
	ID       string
	Name     string
	Template narrative.Template
	Config   narrative.LLMConfig
	LLM      narrative.LLM
}

// Lookup returns the definition for a token.
func Lookup(token string) (Definition, bool) {
	token = strings.TrimSpace(token)
	for _, d := range Definitions {
		if d.Token == token {
			return d, true
		}
	}
	return Definition{}, false
}

// Tokens lists the valid tokens in menu order.
func Tokens() []string {
	tokens := make([]string, len(Definitions))
	for i, d := range Definitions {
		tokens[i] = d.Token
	}
	return tokens
}

// Menu returns the startup question listing every backend.
func Menu() string {
	parts := make([]string, len(Definitions))
	for i, d := range Definitions {
		parts[i] = fmt.Sprintf("%s (%s)", d.Name, d.Token)
	}
	return "Which model would you like to use? " + strings.Join(parts, ", ") + ": "
}

// InvalidChoice is the message shown for a token outside the enumeration.
func InvalidChoice() string {
	tokens := Tokens()
	list := strings.Join(tokens[:len(tokens)-1], ", ") + " or " + tokens[len(tokens)-1]
	return fmt.Sprintf("Invalid choice. Please select a valid model (%s)", list)
}
