package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/config"
	"reelforge/internal/encoder"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/metrics"
	"reelforge/internal/services"
	"reelforge/internal/services/avatar"
	"reelforge/internal/services/faceenhance"
	"reelforge/internal/services/objectstore"
	"reelforge/internal/services/tts"
	"reelforge/internal/staging"
)

// Encoder is the slice of the encoder monitor the pipeline drives.
type Encoder interface {
	Start(ctx context.Context, req encoder.Request, onProgress func(encoder.ProgressEvent)) (*encoder.Invocation, error)
	Filter(ctx context.Context, req encoder.FilterRequest, onProgress func(encoder.ProgressEvent)) (encoder.Result, error)
	Thumbnail(ctx context.Context, input, output string, at float64) error
}

// Dependencies are the collaborators a job talks to. FaceEnhancer may be nil
// when no enhancer is configured; Metrics may be nil.
type Dependencies struct {
	Store        jobs.Store
	Synthesizer  tts.Synthesizer
	Avatars      avatar.Renderer
	Storage      objectstore.Uploader
	Encoder      Encoder
	FaceEnhancer faceenhance.Enhancer
	Metrics      *metrics.Recorder
	Logger       *slog.Logger
}

// Options tune the orchestrator.
type Options struct {
	StagingDir       string
	SceneConcurrency int
	Retry            RetryPolicy
	StorageCost      float64
	// ThumbnailAt is the preferred thumbnail offset in seconds.
	ThumbnailAt float64
	// Now overrides the clock used for timestamps and wall-clock cost.
	Now func() time.Time
}

// Orchestrator runs render jobs through the stage sequence.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
	stages []stageStep
}

// New validates deps and returns an orchestrator.
func New(deps Dependencies, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: job store is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case deps.Avatars == nil:
		return nil, errors.New("pipeline: avatar renderer is required")
	case deps.Storage == nil:
		return nil, errors.New("pipeline: storage uploader is required")
	case deps.Encoder == nil:
		return nil, errors.New("pipeline: encoder is required")
	case strings.TrimSpace(opts.StagingDir) == "":
		return nil, errors.New("pipeline: staging directory is required")
	}
	if opts.SceneConcurrency <= 0 {
		opts.SceneConcurrency = 1
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	opts.Retry = opts.Retry.normalized()
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	o := &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
	}
	o.stages = o.stageTable()
	return o, nil
}

// NewFromConfig wires options from cfg.
func NewFromConfig(cfg *config.Config, deps Dependencies) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	attemptTimeout := cfg.Synthesis.Timeout()
	if avatarTimeout := cfg.Avatar.Timeout(); avatarTimeout > attemptTimeout {
		attemptTimeout = avatarTimeout
	}
	return New(deps, Options{
		StagingDir:       cfg.Paths.StagingDir,
		SceneConcurrency: cfg.Queue.SceneConcurrency,
		Retry:            RetryPolicyFromConfig(cfg.Retry, attemptTimeout),
		StorageCost:      cfg.Cost.StorageCost,
		ThumbnailAt:      cfg.PostProcessing.ThumbnailAtSeconds,
	})
}

// Run processes a queued job to a terminal status. Job failures are recorded
// on the job and do not make Run fail; the returned error covers problems
// reaching the store. Cancelling ctx cancels the job; a cancellation cause of
// services.ErrInterrupted fails it as interrupted instead.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)

	job, err := o.deps.Store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "load job", jobID, nil)
	}
	if job.Status != jobs.StatusQueued {
		return services.Wrap(services.ErrValidation, "pipeline", "start", fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}

	r := newJobRun(o, job, logger, context.WithoutCancel(ctx))
	if err := ctx.Err(); err != nil {
		return o.finish(ctx, r, services.Wrap(services.ErrCancelled, "pipeline", "start", "cancelled before start", err))
	}
	if err := job.Transition(jobs.StatusProcessing, o.opts.Now()); err != nil {
		return err
	}
	if err := o.deps.Store.Update(r.persistCtx, job); err != nil {
		return fmt.Errorf("persist processing status: %w", err)
	}
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Int("scenes", len(job.Scenes)),
		logging.String("quality_tier", string(job.Settings.QualityTier)),
	)

	ws, err := staging.Create(o.opts.StagingDir, job.ID)
	if err != nil {
		return o.finish(ctx, r, fmt.Errorf("create job workspace: %w", err))
	}
	r.ws = ws

	runErr := o.runStages(ctx, r)
	if err := ws.Remove(); err != nil {
		logging.WarnWithContext(logger, "failed to remove job workspace", "workspace_cleanup_failed",
			logging.String("workspace", ws.Dir()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the maintenance sweep removes it later"),
		)
	}
	return o.finish(ctx, r, runErr)
}

func (o *Orchestrator) runStages(ctx context.Context, r *jobRun) error {
	for _, step := range o.stages {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, string(step.stage), "start", "job cancelled", err)
		}
		if err := o.runStage(ctx, r, step); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, r *jobRun, step stageStep) error {
	stageCtx := services.WithStage(ctx, string(step.stage))
	logger := logging.WithContext(stageCtx, o.logger)
	r.enterStage(step.stage)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	err := step.run(stageCtx, r)
	elapsed := time.Since(started)
	o.deps.Metrics.StageFinished(string(step.stage), elapsed, err)
	if err != nil {
		if services.IsCancellation(err) || ctx.Err() != nil {
			logger.Info("stage interrupted", logging.String(logging.FieldEventType, "stage_cancelled"))
		} else {
			logging.ErrorWithContext(logger, "stage failed", "stage_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
				logging.Duration("stage_duration", elapsed),
			)
		}
		return err
	}
	r.report(step.stage, 100)
	r.record(step.stage, jobs.LogInfo, "%s completed in %s", step.stage.Label(), elapsed.Round(time.Millisecond))
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("progress", r.progress()),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

// finish moves the job to its terminal status and persists it.
func (o *Orchestrator) finish(ctx context.Context, r *jobRun, runErr error) error {
	now := o.opts.Now()
	logger := r.logger

	r.writeMu.Lock()
	r.mu.Lock()
	job := r.job
	var (
		status  jobs.Status
		message string
		level   = jobs.LogInfo
	)
	switch {
	case runErr == nil:
		status = jobs.StatusCompleted
		var wallClock time.Duration
		if job.StartedAt != nil {
			wallClock = now.Sub(*job.StartedAt)
		}
		cost := ComputeCost(CostInputs{
			SceneDurations: r.sceneDurations(),
			Tier:           job.Settings.QualityTier,
			PostProcessing: job.Settings.PostProcessing,
			WallClock:      wallClock,
			StorageCost:    o.opts.StorageCost,
		})
		job.Cost = &cost
		job.Outputs = r.outputs
		job.Analysis = r.analysis
		message = fmt.Sprintf("job completed, total cost %.4f", cost.TotalCost)
	case ctx.Err() != nil && errors.Is(context.Cause(ctx), services.ErrInterrupted):
		status = jobs.StatusFailed
		job.Error = &jobs.JobError{Kind: services.KindInterrupted, Message: "job interrupted by daemon shutdown"}
		message = job.Error.Message
		level = jobs.LogError
	case ctx.Err() != nil || services.IsCancellation(runErr):
		status = jobs.StatusCancelled
		message = "job cancelled"
	default:
		status = jobs.StatusFailed
		job.Error = &jobs.JobError{Kind: services.KindOf(runErr), Message: runErr.Error()}
		message = fmt.Sprintf("job failed: %s", runErr.Error())
		level = jobs.LogError
	}
	if err := job.Transition(status, now); err != nil {
		r.mu.Unlock()
		r.writeMu.Unlock()
		return err
	}
	snapshot := job.Clone()
	r.mu.Unlock()

	err := o.deps.Store.Update(r.persistCtx, snapshot)
	r.writeMu.Unlock()
	if err != nil {
		logger.Error("failed to persist terminal status",
			logging.String("status", string(status)),
			logging.Error(err),
		)
		return fmt.Errorf("persist %s status: %w", status, err)
	}
	r.record(snapshot.Stage, level, "%s", message)
	o.deps.Metrics.JobFinished(string(status))

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_"+string(status)),
		logging.String("status", string(status)),
		logging.Int("progress", snapshot.Progress),
	}
	switch status {
	case jobs.StatusCompleted:
		o.deps.Metrics.JobCost(snapshot.Cost.TotalCost)
		attrs = append(attrs,
			logging.Float64("total_cost", snapshot.Cost.TotalCost),
			logging.String("video_url", snapshot.Outputs.VideoURL),
		)
		logger.Info("job completed", logging.Args(attrs...)...)
	case jobs.StatusFailed:
		attrs = append(attrs,
			logging.String(logging.FieldErrorKind, string(snapshot.Error.Kind)),
			logging.String("error_message", snapshot.Error.Message),
		)
		logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
	default:
		logger.Info("job cancelled", logging.Args(attrs...)...)
	}
	return nil
}
