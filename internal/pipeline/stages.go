package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reelforge/internal/composition"
	"reelforge/internal/encoder"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/services/avatar"
	"reelforge/internal/services/tts"
)

const (
	fadeDuration     = 0.5
	minFadedDuration = 2.0
	watermarkOpacity = 0.6
)

type stageStep struct {
	stage jobs.Stage
	run   func(context.Context, *jobRun) error
}

func (o *Orchestrator) stageTable() []stageStep {
	return []stageStep{
		{jobs.StagePreparation, o.prepare},
		{jobs.StageSynthesis, o.synthesize},
		{jobs.StageAvatarRendering, o.renderAvatars},
		{jobs.StageComposition, o.compose},
		{jobs.StagePostProcessing, o.postProcess},
		{jobs.StageUpload, o.upload},
		{jobs.StageAnalysis, o.analyze},
	}
}

func (o *Orchestrator) prepare(_ context.Context, r *jobRun) error {
	if len(r.job.Scenes) == 0 {
		return services.Wrap(services.ErrValidation, string(jobs.StagePreparation), "validate", "job has no scenes", nil)
	}
	out, params, err := ResolveOutput(r.job.Settings)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	r.output, r.params = out, params
	rate := fmt.Sprintf("crf %d", params.CRF)
	if params.Bitrate != "" {
		rate = "bitrate " + params.Bitrate
	}
	r.record(jobs.StagePreparation, jobs.LogInfo, "output %dx%d@%d %s/%s (%s, %s tier, %s)",
		out.Width, out.Height, out.FPS, out.Container, params.Encoder, rate, out.Tier, passLabel(out.TwoPass))
	attrs := logging.DecisionAttrs("encode_passes", passLabel(out.TwoPass),
		fmt.Sprintf("%s quality tier, %s", r.job.Settings.QualityTier, rate))
	attrs = append(attrs,
		logging.String("resolution", r.job.Settings.Resolution),
		logging.String("quality_tier", string(r.job.Settings.QualityTier)),
	)
	r.logger.Info("encode settings resolved", logging.Args(attrs...)...)
	return nil
}

func passLabel(twoPass bool) string {
	if twoPass {
		return "two-pass"
	}
	return "single-pass"
}

func (o *Orchestrator) synthesize(ctx context.Context, r *jobRun) error {
	scenes := r.job.Scenes
	results, err := forEachScene(ctx, r, jobs.StageSynthesis, "synthesis", func(ctx context.Context, i int) (tts.Result, error) {
		res, err := o.deps.Synthesizer.Synthesize(ctx, scenes[i].Text, scenes[i].VoiceID)
		if err == nil && res.DurationSeconds <= 0 {
			err = services.Wrap(services.ErrCollaborator, string(jobs.StageSynthesis), "synthesize", "collaborator returned a non-positive duration", nil)
		}
		return res, err
	})
	if err != nil {
		return err
	}
	r.narrations = results
	total := 0.0
	for _, n := range results {
		total += n.DurationSeconds
	}
	r.record(jobs.StageSynthesis, jobs.LogInfo, "synthesized %d scenes, %.2fs of narration", len(results), total)
	return nil
}

func (o *Orchestrator) renderAvatars(ctx context.Context, r *jobRun) error {
	scenes := r.job.Scenes
	results, err := forEachScene(ctx, r, jobs.StageAvatarRendering, "avatar", func(ctx context.Context, i int) (avatar.Result, error) {
		req := avatar.Request{
			AvatarID:        scenes[i].AvatarID,
			AudioURL:        r.narrations[i].AudioURL,
			DurationSeconds: r.narrations[i].DurationSeconds,
			Width:           r.output.Width,
			Height:          r.output.Height,
		}
		if bg := scenes[i].Background; bg.Color != "" || bg.Image != "" {
			req.Background = &avatar.Background{Color: bg.Color, Image: bg.Image}
		}
		return o.deps.Avatars.Render(ctx, req)
	})
	if err != nil {
		return err
	}
	r.renders = results
	r.record(jobs.StageAvatarRendering, jobs.LogInfo, "rendered %d avatar scenes", len(results))
	return nil
}

// forEachScene runs call for every scene under the scene sub-limit with the
// shared retry policy. Results keep scene order; on any failure every result
// is discarded.
func forEachScene[T any](ctx context.Context, r *jobRun, stage jobs.Stage, collaborator string, call func(context.Context, int) (T, error)) ([]T, error) {
	count := len(r.job.Scenes)
	results := make([]T, count)
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.opts.SceneConcurrency)
	for i := range count {
		g.Go(func() error {
			sceneCtx := services.WithSceneIndex(gctx, i)
			logger := logging.WithContext(sceneCtx, r.o.logger)
			res, err := retry(sceneCtx, r.o.opts.Retry, func(attemptCtx context.Context) (T, error) {
				return call(attemptCtx, i)
			}, func(n retryNotice) {
				r.o.deps.Metrics.CollaboratorRetry(collaborator)
				r.record(stage, jobs.LogWarn, "scene %d: %s call failed, retry %d/%d in %s: %v",
					i+1, collaborator, n.Retry, n.MaxRetries, n.Delay, n.Err)
				logging.WarnWithContext(logger, "collaborator call failed; retrying", "collaborator_retry",
					logging.String("collaborator", collaborator),
					logging.Int("retry", n.Retry),
					logging.Int("max_retries", n.MaxRetries),
					logging.Duration("delay", n.Delay),
					logging.Error(n.Err),
					logging.String(logging.FieldImpact, "scene is delayed"),
				)
			})
			r.o.deps.Metrics.CollaboratorCall(collaborator, err)
			if err != nil {
				return fmt.Errorf("scene %d: %w", i+1, err)
			}
			results[i] = res
			r.report(stage, float64(done.Add(1))*100/float64(count))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil && !services.IsCancellation(err) {
			err = services.Wrap(services.ErrCancelled, string(stage), collaborator, "job cancelled", err)
		}
		return nil, err
	}
	return results, nil
}

// compositionEffects derives the effect list from job settings: short fades
// at both ends when there is room, then the optional watermark.
func compositionEffects(settings jobs.Settings, total float64) []composition.Effect {
	var effects []composition.Effect
	if total >= minFadedDuration {
		effects = append(effects,
			composition.Transition{Kind: composition.FadeIn, Duration: fadeDuration},
			composition.Transition{Kind: composition.FadeOut, Duration: fadeDuration},
		)
	}
	if settings.Watermark != "" {
		effects = append(effects, composition.Watermark{
			Text:     settings.Watermark,
			Position: composition.BottomRight,
			Opacity:  watermarkOpacity,
		})
	}
	return effects
}

func (o *Orchestrator) compose(ctx context.Context, r *jobRun) error {
	plan := composition.Plan{Output: r.output}
	for i, render := range r.renders {
		plan.Inputs = append(plan.Inputs, composition.MediaInput{
			Type:     composition.InputVideo,
			Source:   render.VideoURL,
			Duration: r.narrations[i].DurationSeconds,
		})
	}
	total := plan.VideoDuration()
	plan.Effects = compositionEffects(r.job.Settings, total)

	graph, err := composition.BuildPlan(plan)
	if err != nil {
		return fmt.Errorf("build filter graph: %w", err)
	}
	req := encoder.Request{
		Inputs:        plan.Inputs,
		FilterGraph:   composition.Serialize(graph),
		Output:        r.output,
		Params:        r.params,
		OutputPath:    r.ws.Path("composed." + r.output.Container),
		Duration:      total,
		PassLogPrefix: r.ws.Path("passlog"),
	}
	r.record(jobs.StageComposition, jobs.LogInfo, "encoding %d inputs with %d effects (%d graph operations, passes: %d)",
		len(plan.Inputs), len(plan.Effects), len(graph.Operations), req.Passes())

	started := time.Now()
	inv, err := o.deps.Encoder.Start(ctx, req, r.observeEncoder(jobs.StageComposition, 0, 100))
	if err != nil {
		return err
	}
	res, err := inv.Wait()
	o.deps.Metrics.EncoderFinished(time.Since(started), err)
	if err != nil {
		if errors.Is(err, services.ErrEncoderProcess) {
			r.record(jobs.StageComposition, jobs.LogError, "encoder failed: %v\n%s", err, encoder.Stderr(err))
		}
		return err
	}
	r.videoPath = res.OutputPath
	r.duration = total
	return nil
}

type postStep struct {
	name string
	run  func(ctx context.Context, r *jobRun, input, output string, progress func(encoder.ProgressEvent)) error
}

func (o *Orchestrator) postSteps(pp jobs.PostProcessing) []postStep {
	var steps []postStep
	if pp.FaceEnhancement {
		steps = append(steps, postStep{"face_enhancement", o.enhanceFaces})
	}
	if pp.ColorCorrection {
		steps = append(steps, postStep{"color_correction", o.filterPass(composition.ColorCorrection{
			Contrast:   1.05,
			Saturation: 1.1,
			AutoLevels: true,
		})})
	}
	if pp.NoiseReduction {
		steps = append(steps, postStep{"noise_reduction", o.filterPass(composition.NoiseReduction{
			Strength: 0.4,
			Temporal: true,
		})})
	}
	return steps
}

func (o *Orchestrator) postProcess(ctx context.Context, r *jobRun) error {
	steps := o.postSteps(r.job.Settings.PostProcessing)
	if len(steps) == 0 {
		r.record(jobs.StagePostProcessing, jobs.LogInfo, "no post-processing requested")
		return nil
	}
	span := 100 / float64(len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, string(jobs.StagePostProcessing), step.name, "job cancelled", err)
		}
		output := r.ws.Path(fmt.Sprintf("post-%d-%s.%s", i+1, step.name, r.output.Container))
		err := step.run(ctx, r, r.videoPath, output, r.observeEncoder(jobs.StagePostProcessing, float64(i)*span, span))
		if err != nil {
			if ctx.Err() != nil || services.IsCancellation(err) {
				return err
			}
			warning := services.Wrap(services.ErrPostProcessing, string(jobs.StagePostProcessing), step.name, "step skipped", err)
			r.record(jobs.StagePostProcessing, jobs.LogWarn, "%s skipped: %v", step.name, err)
			attrs := logging.DecisionAttrs("post_processing_step", "skipped", step.name+" failed")
			attrs = append(attrs,
				logging.String("step", step.name),
				logging.Error(warning),
				logging.String(logging.FieldErrorKind, string(services.KindPostProcessing)),
				logging.String(logging.FieldImpact, "output is delivered without this enhancement"),
			)
			logging.WarnWithContext(logging.WithContext(ctx, o.logger), "post-processing step skipped", "post_processing_skipped", attrs...)
		} else {
			r.videoPath = output
			r.record(jobs.StagePostProcessing, jobs.LogInfo, "%s applied", step.name)
		}
		r.report(jobs.StagePostProcessing, float64(i+1)*span)
	}
	return nil
}

func (o *Orchestrator) enhanceFaces(ctx context.Context, _ *jobRun, input, output string, _ func(encoder.ProgressEvent)) error {
	if o.deps.FaceEnhancer == nil {
		return errors.New("face enhancer not configured")
	}
	err := o.deps.FaceEnhancer.Enhance(ctx, input, output)
	o.deps.Metrics.CollaboratorCall("face_enhancer", err)
	return err
}

func (o *Orchestrator) filterPass(effect composition.Effect) func(context.Context, *jobRun, string, string, func(encoder.ProgressEvent)) error {
	return func(ctx context.Context, r *jobRun, input, output string, progress func(encoder.ProgressEvent)) error {
		chain, err := composition.Chain([]composition.Effect{effect}, r.duration)
		if err != nil {
			return err
		}
		started := time.Now()
		_, err = o.deps.Encoder.Filter(ctx, encoder.FilterRequest{
			Input:      input,
			OutputPath: output,
			Chain:      chain,
			Output:     r.output,
			Params:     r.params,
			Duration:   r.duration,
		}, progress)
		o.deps.Metrics.EncoderFinished(time.Since(started), err)
		return err
	}
}

func (o *Orchestrator) upload(ctx context.Context, r *jobRun) error {
	id := r.jobID()
	info, err := os.Stat(r.videoPath)
	if err != nil {
		return fmt.Errorf("stat rendered video: %w", err)
	}

	thumbnail := r.ws.Path("thumbnail.jpg")
	if err := o.deps.Encoder.Thumbnail(ctx, r.videoPath, thumbnail, thumbnailOffset(o.opts.ThumbnailAt, r.duration)); err != nil {
		if ctx.Err() != nil || services.IsCancellation(err) {
			return err
		}
		r.record(jobs.StageUpload, jobs.LogWarn, "thumbnail extraction failed: %v", err)
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "thumbnail extraction failed", "thumbnail_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job completes without a thumbnail"),
		)
		thumbnail = ""
	}
	r.report(jobs.StageUpload, 20)

	videoURL, err := o.publish(ctx, r.videoPath, fmt.Sprintf("%s/video.%s", id, r.output.Container))
	if err != nil {
		return err
	}
	r.report(jobs.StageUpload, 80)

	var thumbnailURL string
	if thumbnail != "" {
		if thumbnailURL, err = o.publish(ctx, thumbnail, id+"/thumbnail.jpg"); err != nil {
			return err
		}
	}
	r.outputs = &jobs.Outputs{
		VideoURL:        videoURL,
		ThumbnailURL:    thumbnailURL,
		DurationSeconds: round4(r.duration),
		FileSizeBytes:   info.Size(),
	}
	r.record(jobs.StageUpload, jobs.LogInfo, "uploaded %s (%d bytes)", videoURL, info.Size())
	return nil
}

// publish uploads one artifact. Upload failures are fatal and never retried.
func (o *Orchestrator) publish(ctx context.Context, path, key string) (string, error) {
	url, err := o.deps.Storage.Upload(ctx, path, key)
	o.deps.Metrics.CollaboratorCall("storage", err)
	if err != nil {
		if ctx.Err() != nil || services.IsCancellation(err) || errors.Is(err, services.ErrCollaborator) {
			return "", err
		}
		return "", services.Wrap(services.ErrCollaborator, string(jobs.StageUpload), "upload", key, err)
	}
	return url, nil
}

func thumbnailOffset(preferred, duration float64) float64 {
	if preferred <= 0 {
		preferred = 1
	}
	if duration > 0 {
		return math.Min(preferred, duration/2)
	}
	return preferred
}

func (o *Orchestrator) analyze(_ context.Context, r *jobRun) error {
	targets := make([]*float64, len(r.job.Scenes))
	for i, scene := range r.job.Scenes {
		targets[i] = scene.TargetDuration
	}
	lipSync := make([]float64, len(r.renders))
	for i, render := range r.renders {
		lipSync[i] = render.LipSyncAccuracy
	}
	var size int64
	if r.outputs != nil {
		size = r.outputs.FileSizeBytes
	}
	report, err := assessQuality(qualityInputs{
		FileSize:        size,
		Duration:        r.duration,
		Width:           r.output.Width,
		Height:          r.output.Height,
		FPS:             r.output.FPS,
		SceneDurations:  r.sceneDurations(),
		TargetDurations: targets,
		LipSync:         lipSync,
	})
	if err != nil {
		r.record(jobs.StageAnalysis, jobs.LogWarn, "quality analysis skipped: %v", err)
		return nil
	}
	r.analysis = &report
	r.record(jobs.StageAnalysis, jobs.LogInfo, "quality scores: video %.2f, audio %.2f, lip-sync %.2f",
		report.VideoScore, report.AudioScore, report.LipSyncScore)
	return nil
}
