package ai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/nhle/inbox-triage/internal/model"
)

const (
	defaultModel     = "gpt-4.1-mini"
	defaultMaxTokens = 1024
)

var _ Completer = (*OpenAICompleter)(nil)

// OpenAICompleter runs prompts against an OpenAI-compatible chat
// completions endpoint.
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAICompleter creates a completer for the configured endpoint.
func NewOpenAICompleter(
	apiKey string,
	cfg model.AIConfig,
) *OpenAICompleter {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAICompleter{
		client:    &client,
		model:     modelName,
		maxTokens: maxTokens,
	}
}

// Complete sends one system and one user message and returns the text of
// the first choice.
func (c *OpenAICompleter) Complete(
	ctx context.Context,
	system, user string,
) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: param.NewOpt(0.2),
		MaxTokens:   param.NewOpt(int64(c.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("completion stopped by content_filter")
	}
	return choice.Message.Content, nil
}
