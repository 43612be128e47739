package llm

import (
	"context"
	"sync"
)

// MockGenerator is an in-process generator for tests and demos.
type MockGenerator struct {
	mu         sync.Mutex
	response   string
	err        error
	callCount  int
	lastPrompt string

	// GenerateFunc can be overridden for custom behavior.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

// NewMockGenerator creates a mock that replies with the given text.
func NewMockGenerator(response string) *MockGenerator {
	return &MockGenerator{response: response}
}

// SetResponse sets the reply text.
func (g *MockGenerator) SetResponse(response string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.response = response
}

// SetError sets an error to return.
func (g *MockGenerator) SetError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// CallCount returns the number of Generate calls made.
func (g *MockGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callCount
}

// LastPrompt returns the prompt from the most recent call.
func (g *MockGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastPrompt
}

// Generate implements Generator.
func (g *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.callCount++
	g.lastPrompt = prompt
	response, err, custom := g.response, g.err, g.GenerateFunc
	g.mu.Unlock()

	if custom != nil {
		return custom(ctx, prompt)
	}
	if err != nil {
		return "", err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return response, nil
}
