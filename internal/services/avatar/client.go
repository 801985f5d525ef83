package avatar

import (
	"context"
	"fmt"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/httpapi"
)

const renderPath = "/v1/render"

// Background is the visual backdrop behind the avatar.
type Background struct {
	Color string `json:"color,omitempty"`
	Image string `json:"image,omitempty"`
}

// Request asks for one lip-synced scene video.
type Request struct {
	AvatarID        string      `json:"avatar_id"`
	AudioURL        string      `json:"audio_url"`
	DurationSeconds float64     `json:"duration_seconds"`
	Width           int         `json:"width,omitempty"`
	Height          int         `json:"height,omitempty"`
	Background      *Background `json:"background,omitempty"`
}

// Result is the rendered scene video.
type Result struct {
	VideoURL        string  `json:"video_url"`
	LipSyncAccuracy float64 `json:"lip_sync_accuracy"`
}

// Renderer produces avatar videos.
type Renderer interface {
	Render(ctx context.Context, req Request) (Result, error)
}

// Client talks to the avatar rendering service.
type Client struct {
	api *httpapi.Client
}

// New constructs an avatar rendering client.
func New(cfg config.Avatar, opts ...httpapi.Option) (*Client, error) {
	api, err := httpapi.New("avatar", cfg.Collaborator, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Render requests a lip-synced video of req.AvatarID speaking req.AudioURL.
func (c *Client) Render(ctx context.Context, req Request) (Result, error) {
	req.AvatarID = strings.TrimSpace(req.AvatarID)
	req.AudioURL = strings.TrimSpace(req.AudioURL)
	if req.AvatarID == "" || req.AudioURL == "" || req.DurationSeconds <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, "avatar", "render", "avatar id, audio url and duration required", nil)
	}
	var result Result
	if err := c.api.PostJSON(ctx, renderPath, req, &result); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(result.VideoURL) == "" {
		return Result{}, services.Wrap(services.ErrCollaborator, "avatar", "render", "response missing video_url", nil)
	}
	if result.LipSyncAccuracy < 0 || result.LipSyncAccuracy > 1 {
		return Result{}, services.Wrap(services.ErrCollaborator, "avatar", "render",
			fmt.Sprintf("lip_sync_accuracy %v outside [0,1]", result.LipSyncAccuracy), nil)
	}
	return result, nil
}
