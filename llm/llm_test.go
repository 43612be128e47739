package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/voxchat/dialoguekit/errors"
)

func TestInferProviderFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4-20250514", "anthropic"},
		{"gpt-4o", "openai"},
		{"o3-mini", "openai"},
		{"gemini-2.0-flash", "google"},
		{"llama-3", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := InferProviderFromModel(tt.model); got != tt.want {
			t.Errorf("InferProviderFromModel(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Provider: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "k", MaxTokens: 1024}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing provider", Config{Model: "m", APIKey: "k", MaxTokens: 1}},
		{"missing model", Config{Provider: "openai", APIKey: "k", MaxTokens: 1}},
		{"missing api key", Config{Provider: "openai", Model: "m", MaxTokens: 1}},
		{"missing max tokens", Config{Provider: "openai", Model: "m", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "carrier-pigeon", Model: "m", APIKey: "k", MaxTokens: 1})
	if !errors.IsCode(err, errors.ErrCodeUnsupported) {
		t.Errorf("expected unsupported-provider error, got %v", err)
	}

	_, err = New(Config{Model: "llama-3", APIKey: "k", MaxTokens: 1})
	if err == nil {
		t.Error("uninferable model should be rejected")
	}
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		err       string
		retryable bool
		billing   bool
	}{
		{"429 Too Many Requests", true, false},
		{"model is overloaded", true, false},
		{"503 Service Unavailable", true, false},
		{"gateway timeout", true, false},
		{"invalid api key", false, false},
		{"quota exceeded for project", false, true},
		{"402 payment required", false, true},
		{"insufficient credits", false, true},
	}
	for _, tt := range tests {
		err := fmt.Errorf("%s", tt.err)
		if got := isRetryableError(err); got != tt.retryable {
			t.Errorf("isRetryableError(%q) = %v, want %v", tt.err, got, tt.retryable)
		}
		if got := isBillingError(err); got != tt.billing {
			t.Errorf("isBillingError(%q) = %v, want %v", tt.err, got, tt.billing)
		}
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), "test",
		RetryConfig{MaxRetries: 3, InitBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		func() error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("503 service unavailable")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryFatalErrorsStopImmediately(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), "test",
		RetryConfig{MaxRetries: 5, InitBackoff: time.Millisecond},
		func() error {
			attempts++
			return fmt.Errorf("invalid request: bad prompt")
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("non-retryable error must not retry, got %d attempts", attempts)
	}

	attempts = 0
	err = withRetry(context.Background(), "test",
		RetryConfig{MaxRetries: 5, InitBackoff: time.Millisecond},
		func() error {
			attempts++
			return fmt.Errorf("402 payment required")
		})
	if !errors.IsCode(err, errors.ErrCodeUnavailable) {
		t.Errorf("billing errors should map to unavailable, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("billing error must not retry, got %d attempts", attempts)
	}
}

func TestWithRetryExhaustion(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), "test",
		RetryConfig{MaxRetries: 2, InitBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		func() error {
			attempts++
			return fmt.Errorf("429 too many requests")
		})
	if !errors.IsCode(err, errors.ErrCodeRateLimit) {
		t.Errorf("expected rate-limited after exhaustion, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected initial try + 2 retries, got %d attempts", attempts)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, "test",
		RetryConfig{MaxRetries: 5, InitBackoff: time.Hour},
		func() error {
			return fmt.Errorf("503 service unavailable")
		})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled during backoff, got %v", err)
	}
}

func TestMockGenerator(t *testing.T) {
	gen := NewMockGenerator("hello there")

	reply, err := gen.Generate(context.Background(), "hi")
	if err != nil || reply != "hello there" {
		t.Fatalf("unexpected mock result: %q, %v", reply, err)
	}
	if gen.CallCount() != 1 || gen.LastPrompt() != "hi" {
		t.Errorf("mock bookkeeping wrong: count=%d prompt=%q", gen.CallCount(), gen.LastPrompt())
	}

	gen.SetError(fmt.Errorf("boom"))
	if _, err := gen.Generate(context.Background(), "hi"); err == nil {
		t.Error("expected configured error")
	}

	gen.SetError(nil)
	gen.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "custom: " + prompt, nil
	}
	reply, _ = gen.Generate(context.Background(), "x")
	if reply != "custom: x" {
		t.Errorf("GenerateFunc override ignored: %q", reply)
	}
}
