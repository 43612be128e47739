package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/voxchat/dialoguekit/errors"
)

// AnthropicGenerator produces replies using the official Anthropic SDK.
type AnthropicGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	persona   string
	retry     RetryConfig
}

// NewAnthropicGenerator creates a generator backed by the Anthropic API.
func NewAnthropicGenerator(cfg Config) (*AnthropicGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicGenerator{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		persona:   cfg.Persona,
		retry:     cfg.Retry,
	}, nil
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if g.persona != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: g.persona},
		}
	}

	var resp *anthropic.Message
	err := withRetry(ctx, "anthropic", g.retry, func() error {
		var callErr error
		resp, callErr = g.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return "", err
	}

	var reply string
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply += block.Text
		}
	}
	if reply == "" {
		return "", errors.GeneratorFailure("anthropic returned no text content")
	}
	return reply, nil
}
