package queue

import (
	"context"
	"errors"
	"fmt"

	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/staging"
)

// RecoverResult summarizes a Recover pass.
type RecoverResult struct {
	Requeued    int
	Interrupted int
	Cleanup     staging.CleanResult
}

// Recover restores scheduler state from the store after a restart. Queued
// jobs are requeued in creation order, jobs left processing are failed as
// interrupted and orphaned workspaces are removed. Call it before Start.
func (s *Scheduler) Recover(ctx context.Context) (RecoverResult, error) {
	var result RecoverResult

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		return result, errors.New("queue: recover must run before start")
	}

	open, err := s.store.List(ctx, jobs.ListFilter{Statuses: []jobs.Status{jobs.StatusQueued, jobs.StatusProcessing}})
	if err != nil {
		return result, fmt.Errorf("list unfinished jobs: %w", err)
	}

	var requeue []string
	for _, job := range open {
		switch job.Status {
		case jobs.StatusQueued:
			requeue = append(requeue, job.ID)
		case jobs.StatusProcessing:
			if err := s.failInterrupted(ctx, job); err != nil {
				return result, err
			}
			result.Interrupted++
		}
	}

	s.mu.Lock()
	tracked := make(map[string]struct{}, len(s.pending))
	for _, id := range s.pending {
		tracked[id] = struct{}{}
	}
	for _, id := range requeue {
		if _, ok := tracked[id]; ok {
			continue
		}
		s.pending = append(s.pending, id)
		result.Requeued++
	}
	s.recordDepthLocked()
	s.mu.Unlock()

	result.Cleanup = staging.CleanOrphaned(ctx, s.opts.StagingDir, s.ActiveJobIDs(), s.logger)

	s.logger.Info("queue recovered",
		logging.String(logging.FieldEventType, "queue_recovered"),
		logging.Int("requeued", result.Requeued),
		logging.Int("interrupted", result.Interrupted),
		logging.Int("workspaces_removed", len(result.Cleanup.Removed)),
	)
	return result, nil
}

func (s *Scheduler) failInterrupted(ctx context.Context, job *jobs.RenderJob) error {
	job.Error = &jobs.JobError{
		Kind:    services.KindInterrupted,
		Message: "job interrupted by daemon restart",
	}
	if err := job.Transition(jobs.StatusFailed, s.opts.Now()); err != nil {
		return err
	}
	if err := s.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist interrupted job %s: %w", job.ID, err)
	}
	s.appendLog(ctx, job.ID, jobs.LogError, job.Error.Message)
	s.opts.Metrics.JobFinished(string(jobs.StatusFailed))
	logging.WarnWithContext(s.logger, "job left processing by previous run", "job_interrupted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("stage", string(job.Stage)),
		logging.Int("progress", job.Progress),
		logging.String(logging.FieldImpact, "job marked failed; resubmit to render again"),
	)
	return nil
}
