package llm

import (
	"context"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/zoe-assistant/zoe/pkg/logger"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	retryAttempts      = 3
	retryInitialDelay  = 500 * time.Millisecond
	retryMaxDelay      = 5 * time.Second
)

// openaiResponder speaks the OpenAI chat completion API. It also
// covers Ollama, which exposes the same API under its /v1 path.
type openaiResponder struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAIResponder(cfg Config) *openaiResponder {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &openaiResponder{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (r *openaiResponder) Respond(ctx context.Context, systemPrompt, message string) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	}

	var response openai.ChatCompletionResponse
	err := retry.Do(
		func() error {
			var apiErr error
			response, apiErr = r.client.CreateChatCompletion(ctx, request)
			return apiErr
		},
		retry.Attempts(retryAttempts),
		retry.Delay(retryInitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("retrying chat completion")
		}),
	)
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}

	if len(response.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}
