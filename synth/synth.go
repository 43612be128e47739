// Package synth turns routed dialogue segments into audio. The OpenAI
// speech endpoint is the reference backend; a mock is provided for tests
// and offline demos.
package synth

import (
	"context"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxchat/dialoguekit/errors"
)

// Synthesizer turns one segment of text into audio for a voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Config holds configuration for the OpenAI speech backend.
type Config struct {
	APIKey  string
	BaseURL string // optional custom endpoint
	Model   string // default tts-1
}

// OpenAISynthesizer produces audio via the OpenAI speech API. The voice ID
// from the session's voice mapping is passed through as the API voice name.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISynthesizer creates a speech synthesizer.
func NewOpenAISynthesizer(cfg Config) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.InvalidConfig("api key is required for speech synthesis")
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAISynthesizer{
		client: &client,
		model:  cfg.Model,
	}, nil
}

// Synthesize implements Synthesizer.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if text == "" {
		return nil, errors.InvalidInput("empty text for synthesis")
	}
	if voiceID == "" {
		return nil, errors.InvalidInput("empty voice id for synthesis")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModel(s.model),
		Input: text,
		Voice: openai.AudioSpeechNewParamsVoice(voiceID),
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeSynthesisFailure,
			"openai speech request failed", errors.WithMetadata("voice_id", voiceID))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeSynthesisFailure,
			"reading speech response", errors.WithMetadata("voice_id", voiceID))
	}
	return data, nil
}
