package daemonrun

import (
	"context"
	"fmt"
	"log/slog"

	"reelforge/internal/config"
	"reelforge/internal/encoder"
	"reelforge/internal/jobs"
	"reelforge/internal/metrics"
	"reelforge/internal/pipeline"
	"reelforge/internal/services/avatar"
	"reelforge/internal/services/faceenhance"
	"reelforge/internal/services/objectstore"
	"reelforge/internal/services/tts"
)

// BuildPipeline constructs the collaborator clients, encoder monitor and
// storage backend named in cfg and returns the orchestrator that drives jobs
// through them.
func BuildPipeline(ctx context.Context, cfg *config.Config, store jobs.Store, rec *metrics.Recorder, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	synth, err := tts.New(cfg.Synthesis)
	if err != nil {
		return nil, fmt.Errorf("synthesis client: %w", err)
	}
	avatars, err := avatar.New(cfg.Avatar)
	if err != nil {
		return nil, fmt.Errorf("avatar client: %w", err)
	}
	uploader, err := objectstore.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage backend: %w", err)
	}
	monitor, err := encoder.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	deps := pipeline.Dependencies{
		Store:       store,
		Synthesizer: synth,
		Avatars:     avatars,
		Storage:     uploader,
		Encoder:     monitor,
		Metrics:     rec,
		Logger:      logger,
	}
	enhancer, err := faceenhance.New(cfg.PostProcessing, cfg.Avatar.TimeoutSeconds)
	if err != nil {
		return nil, fmt.Errorf("face enhancer: %w", err)
	}
	if enhancer != nil {
		deps.FaceEnhancer = enhancer
	}
	return pipeline.NewFromConfig(cfg, deps)
}
