package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/voxchat/dialoguekit/errors"
)

// OpenAIGenerator produces replies using the official OpenAI SDK.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
	persona   string
	retry     RetryConfig
}

// NewOpenAIGenerator creates a generator backed by the OpenAI API.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIGenerator{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		persona:   cfg.Persona,
		retry:     cfg.Retry,
	}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if g.persona != "" {
		messages = append(messages, openai.SystemMessage(g.persona))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(g.model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(g.maxTokens)),
	}

	var resp *openai.ChatCompletion
	err := withRetry(ctx, "openai", g.retry, func() error {
		var callErr error
		resp, callErr = g.client.Chat.Completions.New(ctx, params)
		return callErr
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.GeneratorFailure("openai returned no text content")
	}
	return resp.Choices[0].Message.Content, nil
}
