package tts

import (
	"context"
	"fmt"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/httpapi"
)

const synthesizePath = "/v1/synthesize"

// Result is the synthesized narration for one scene.
type Result struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Synthesizer turns narration text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (Result, error)
}

// Client talks to the speech synthesis service.
type Client struct {
	api          *httpapi.Client
	defaultVoice string
}

// New constructs a synthesis client.
func New(cfg config.Synthesis, opts ...httpapi.Option) (*Client, error) {
	api, err := httpapi.New("synthesis", cfg.Collaborator, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, defaultVoice: strings.TrimSpace(cfg.DefaultVoice)}, nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// Synthesize requests narration audio for text. An empty voiceID uses the
// configured default voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, services.Wrap(services.ErrValidation, "synthesis", "synthesize", "text required", nil)
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		voiceID = c.defaultVoice
	}
	var result Result
	if err := c.api.PostJSON(ctx, synthesizePath, synthesizeRequest{Text: text, VoiceID: voiceID}, &result); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(result.AudioURL) == "" || result.DurationSeconds <= 0 {
		return Result{}, services.Wrap(services.ErrCollaborator, "synthesis", "synthesize",
			fmt.Sprintf("incomplete response (audio_url=%q duration=%v)", result.AudioURL, result.DurationSeconds), nil)
	}
	return result, nil
}
