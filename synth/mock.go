package synth

import (
	"context"
	"sync"
)

// MockSynthesizer records synthesis calls and returns canned audio.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []MockCall
	errs  map[string]error // voiceID -> error
}

// MockCall is one recorded Synthesize invocation.
type MockCall struct {
	Text    string
	VoiceID string
}

// NewMockSynthesizer creates an empty mock.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{errs: make(map[string]error)}
}

// FailVoice makes synthesis fail for one voice ID.
func (m *MockSynthesizer) FailVoice(voiceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[voiceID] = err
}

// Calls returns the recorded invocations in order.
func (m *MockSynthesizer) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Synthesize implements Synthesizer. The returned audio is the voice ID and
// text joined with a colon, enough for assertions.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Text: text, VoiceID: voiceID})
	if err := m.errs[voiceID]; err != nil {
		return nil, err
	}
	return []byte(voiceID + ":" + text), nil
}
