package faceenhance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/services"
	"reelforge/internal/services/httpapi"
)

const enhancePath = "/v1/enhance"

// Enhancer restores faces in a rendered video.
type Enhancer interface {
	Enhance(ctx context.Context, inputPath, outputPath string) error
}

// Client streams a video to the face enhancement service and writes the
// enhanced result.
type Client struct {
	api *httpapi.Client
}

// New constructs a client, or returns nil when no enhancer is configured.
func New(cfg config.PostProcessing, timeoutSeconds int, opts ...httpapi.Option) (*Client, error) {
	if strings.TrimSpace(cfg.FaceEnhancerURL) == "" {
		return nil, nil
	}
	api, err := httpapi.New("face_enhancer", config.Collaborator{
		BaseURL:        cfg.FaceEnhancerURL,
		APIKey:         cfg.FaceEnhancerAPIKey,
		TimeoutSeconds: timeoutSeconds,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Enhance uploads inputPath and writes the response body to outputPath. A
// partial output is removed on failure.
func (c *Client) Enhance(ctx context.Context, inputPath, outputPath string) error {
	if c == nil {
		return services.Wrap(services.ErrPostProcessing, "face_enhancer", "enhance", "face enhancer not configured", nil)
	}
	in, err := os.Open(inputPath)
	if err != nil {
		return services.Wrap(services.ErrPostProcessing, "face_enhancer", "open input", "", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".enhance-*")
	if err != nil {
		return services.Wrap(services.ErrPostProcessing, "face_enhancer", "create output", "", err)
	}
	tmpPath := tmp.Name()
	written, err := c.api.Stream(ctx, enhancePath, in, "video/mp4", tmp)
	closeErr := tmp.Close()
	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = errors.New("empty response body")
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("face enhancement: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrPostProcessing, "face_enhancer", "finalize output", "", err)
	}
	return nil
}
