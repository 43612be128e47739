// Package llm provides reply generators backed by hosted model providers.
// A generator takes the augmented context for one turn and returns the
// character's reply text, which may carry speaker markers for downstream
// segmentation.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/voxchat/dialoguekit/errors"
)

// Generator produces reply text for an augmented context.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetryConfig holds retry settings for provider calls.
type RetryConfig struct {
	MaxRetries  int           // max retry attempts (default 5)
	InitBackoff time.Duration // initial backoff (default 1s)
	MaxBackoff  time.Duration // max backoff (default 60s)
}

// Config holds configuration for a provider-backed generator.
type Config struct {
	Provider  string // anthropic, openai, google; inferred from Model if empty
	Model     string
	APIKey    string
	BaseURL   string // optional custom endpoint (anthropic, openai)
	MaxTokens int

	// Persona is the system prompt establishing the character's voice and
	// the speaker-marker convention for multi-voice replies.
	Persona string

	Retry RetryConfig
}

// Validate checks that the required fields are set.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return errors.InvalidConfig("provider is required")
	}
	if c.Model == "" {
		return errors.InvalidConfig("model is required")
	}
	if c.APIKey == "" {
		return errors.InvalidConfig("api key is required")
	}
	if c.MaxTokens == 0 {
		return errors.InvalidConfig("max_tokens is required")
	}
	return nil
}

// New creates a generator for the configured provider. If Provider is
// empty it is inferred from the model name.
func New(cfg Config) (Generator, error) {
	if cfg.Provider == "" && cfg.Model != "" {
		cfg.Provider = InferProviderFromModel(cfg.Model)
		if cfg.Provider == "" {
			return nil, errors.InvalidConfig("cannot determine provider for model " + cfg.Model + "; set provider explicitly")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicGenerator(cfg)
	case "openai":
		return NewOpenAIGenerator(cfg)
	case "google":
		return NewGoogleGenerator(cfg)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unknown provider: "+cfg.Provider)
	}
}

// InferProviderFromModel guesses the provider from a model name prefix.
func InferProviderFromModel(model string) string {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.HasPrefix(model, "gemini"):
		return "google"
	}
	return ""
}
