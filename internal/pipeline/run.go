package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"reelforge/internal/catalog"
	"reelforge/internal/composition"
	"reelforge/internal/encoder"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/services/avatar"
	"reelforge/internal/services/tts"
	"reelforge/internal/staging"
)

// jobRun is the per-job working state. Stage results are written by one
// stage and read by later ones; mu guards the job record, which concurrent
// scene workers and encoder callbacks update. writeMu orders store writes so
// snapshots reach the store in the order they were taken.
type jobRun struct {
	o          *Orchestrator
	logger     *slog.Logger
	persistCtx context.Context
	ws         *staging.Workspace

	writeMu sync.Mutex
	mu      sync.Mutex
	job     *jobs.RenderJob

	sampler *logging.ProgressSampler

	output     composition.OutputSpec
	params     catalog.Params
	narrations []tts.Result
	renders    []avatar.Result
	videoPath  string
	duration   float64
	outputs    *jobs.Outputs
	analysis   *jobs.QualityReport
}

func newJobRun(o *Orchestrator, job *jobs.RenderJob, logger *slog.Logger, persistCtx context.Context) *jobRun {
	return &jobRun{
		o:          o,
		logger:     logger,
		persistCtx: persistCtx,
		job:        job,
		sampler:    logging.NewProgressSampler(5),
	}
}

func (r *jobRun) jobID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.ID
}

func (r *jobRun) progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Progress
}

// enterStage records the stage switch on the job and in the processing log.
func (r *jobRun) enterStage(stage jobs.Stage) {
	r.save(func(job *jobs.RenderJob) bool {
		job.Stage = stage
		return true
	})
	r.record(stage, jobs.LogInfo, "%s started", stage.Label())
}

// report maps percent within stage onto the job-wide scale. Values below the
// current progress are ignored so progress never moves backwards.
func (r *jobRun) report(stage jobs.Stage, percent float64) {
	overall := jobs.OverallProgress(stage, percent)
	r.save(func(job *jobs.RenderJob) bool {
		if overall <= job.Progress {
			return false
		}
		job.Progress = overall
		return true
	})
}

// observeEncoder forwards an encoder event into stage progress, scaled into
// [base, base+span] of the stage.
func (r *jobRun) observeEncoder(stage jobs.Stage, base, span float64) func(encoder.ProgressEvent) {
	return func(ev encoder.ProgressEvent) {
		percent := base + ev.Percent*span/100
		r.report(stage, percent)

		if !r.sampler.ShouldLog(percent, string(stage)+"/"+ev.Stage) {
			return
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldProgressStage, ev.Stage),
			logging.Float64(logging.FieldProgressPercent, ev.Percent),
		}
		if ev.ETASeconds > 0 {
			attrs = append(attrs, logging.Float64(logging.FieldProgressETA, ev.ETASeconds))
		}
		if ev.TotalFrames > 0 {
			attrs = append(attrs, logging.String(logging.FieldProgressMessage, fmt.Sprintf("frame %d/%d", ev.CurrentFrame, ev.TotalFrames)))
		}
		r.logger.Info("encoder progress", logging.Args(attrs...)...)
	}
}

// save applies mutate to the job and writes the result. Holding writeMu
// across snapshot and Update keeps a slower writer from overwriting a newer
// snapshot with an older one.
func (r *jobRun) save(mutate func(job *jobs.RenderJob) bool) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if !mutate(r.job) {
		r.mu.Unlock()
		return
	}
	snapshot := r.job.Clone()
	r.mu.Unlock()

	if err := r.o.deps.Store.Update(r.persistCtx, snapshot); err != nil {
		logging.WarnWithContext(r.logger, "failed to persist job progress", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job state shown to clients may lag"),
		)
	}
}

// record appends a processing-log entry.
func (r *jobRun) record(stage jobs.Stage, level jobs.LogLevel, format string, args ...any) {
	entry := jobs.LogEntry{
		Timestamp: r.o.opts.Now(),
		Stage:     stage,
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	}
	if err := r.o.deps.Store.AppendLog(r.persistCtx, r.jobID(), entry); err != nil {
		r.logger.Warn("failed to append processing log",
			logging.String(logging.FieldEventType, "job_log_failed"),
			logging.Error(err),
		)
	}
}

// sceneDurations prefers the synthesized narration lengths and falls back
// to the provisional targets when synthesis never ran.
func (r *jobRun) sceneDurations() []float64 {
	if len(r.narrations) == len(r.job.Scenes) && len(r.narrations) > 0 {
		out := make([]float64, len(r.narrations))
		for i, n := range r.narrations {
			out[i] = n.DurationSeconds
		}
		return out
	}
	out := make([]float64, 0, len(r.job.Scenes))
	for _, scene := range r.job.Scenes {
		if scene.TargetDuration != nil {
			out = append(out, *scene.TargetDuration)
		}
	}
	return out
}
