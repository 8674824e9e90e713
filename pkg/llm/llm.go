// Package llm provides the chat fallback: when no skill trigger or
// intent pattern matches, the router asks a language model to respond.
// Local models served over an OpenAI-compatible API (Ollama) are the
// default; hosted OpenAI and Anthropic are supported as alternatives.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Responder generates a reply to a user message under a system prompt.
type Responder interface {
	Respond(ctx context.Context, systemPrompt, message string) (string, error)
}

// Config selects and configures a chat provider.
type Config struct {
	// Provider is one of "ollama", "openai", "anthropic".
	Provider string `mapstructure:"provider"`
	// Model is the provider-specific model name.
	Model string `mapstructure:"model"`
	// BaseURL overrides the API endpoint. For Ollama this defaults to
	// http://localhost:11434/v1.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is read from the environment for hosted providers when empty.
	APIKey string `mapstructure:"api_key"`
	// MaxTokens caps the response length.
	MaxTokens int `mapstructure:"max_tokens"`
}

const (
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOllamaModel   = "llama3.2"
	defaultMaxTokens     = 1024
)

// NewResponder builds a Responder from config.
func NewResponder(cfg Config) (Responder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOllamaBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
		return newOpenAIResponder(cfg), nil
	case "openai":
		return newOpenAIResponder(cfg), nil
	case "anthropic":
		return newAnthropicResponder(cfg), nil
	default:
		return nil, errors.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
