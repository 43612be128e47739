package llm

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/voxchat/dialoguekit/errors"
)

// GoogleGenerator produces replies using the official Google Gemini SDK.
type GoogleGenerator struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	retry     RetryConfig
}

// NewGoogleGenerator creates a generator backed by the Gemini API.
func NewGoogleGenerator(cfg Config) (*GoogleGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating google client")
	}

	model := client.GenerativeModel(cfg.Model)
	maxTokens := int32(cfg.MaxTokens)
	model.MaxOutputTokens = &maxTokens
	if cfg.Persona != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(cfg.Persona)},
		}
	}

	return &GoogleGenerator{
		client:    client,
		model:     model,
		modelName: cfg.Model,
		retry:     cfg.Retry,
	}, nil
}

// Close closes the underlying client.
func (g *GoogleGenerator) Close() error {
	return g.client.Close()
}

// Generate implements Generator.
func (g *GoogleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var resp *genai.GenerateContentResponse
	err := withRetry(ctx, "google", g.retry, func() error {
		var callErr error
		resp, callErr = g.model.GenerateContent(ctx, genai.Text(prompt))
		return callErr
	})
	if err != nil {
		return "", err
	}

	var reply string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				reply += string(text)
			}
		}
	}
	if reply == "" {
		return "", errors.GeneratorFailure("google returned no text content")
	}
	return reply, nil
}
