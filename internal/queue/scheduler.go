package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/metrics"
	"reelforge/internal/services"
)

// Runner drives one queued job to a terminal status. The pipeline
// orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Options tune the scheduler.
type Options struct {
	MaxConcurrency int
	// KnownAvatars restricts accepted avatar ids; empty accepts any.
	KnownAvatars []string
	// StagingDir is swept for orphaned workspaces by Recover.
	StagingDir string
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Pending        int `json:"pending"`
	Running        int `json:"running"`
	MaxConcurrency int `json:"max_concurrency"`
}

// Scheduler admits jobs and runs at most MaxConcurrency of them at once.
type Scheduler struct {
	store     jobs.Store
	runner    Runner
	validator *Validator
	opts      Options
	logger    *slog.Logger

	mu      sync.Mutex
	pending []string
	running map[string]context.CancelCauseFunc
	baseCtx context.Context
	stopAll context.CancelCauseFunc
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New returns a scheduler. Jobs are accepted immediately but only start
// once Start is called.
func New(store jobs.Store, runner Runner, opts Options) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("queue: job store is required")
	}
	if runner == nil {
		return nil, errors.New("queue: runner is required")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 2
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Scheduler{
		store:     store,
		runner:    runner,
		validator: NewValidator(opts.KnownAvatars),
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "queue"),
		running:   make(map[string]context.CancelCauseFunc),
	}, nil
}

// Submit validates req, persists a queued job and schedules it. Invalid
// requests are rejected before anything is stored.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (*jobs.RenderJob, error) {
	scenes, settings, err := s.validator.Validate(req)
	if err != nil {
		s.logger.Info("submission rejected",
			logging.String(logging.FieldEventType, "job_rejected"),
			logging.Error(err),
		)
		return nil, err
	}
	now := s.opts.Now()
	job := &jobs.RenderJob{
		ID:        s.opts.NewID(),
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Status:    jobs.StatusQueued,
		Scenes:    scenes,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The job becomes visible to Cancel and enters pending under one lock,
	// so a cancel can never land between the two.
	s.mu.Lock()
	if err := s.store.Create(ctx, job); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.appendLog(ctx, job.ID, jobs.LogInfo, fmt.Sprintf("job queued with %d scenes", len(scenes)))
	s.pending = append(s.pending, job.ID)
	s.dispatchLocked()
	s.mu.Unlock()
	s.opts.Metrics.JobSubmitted()

	logging.WithContext(services.WithJobID(ctx, job.ID), s.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.Int("scenes", len(scenes)),
		logging.String("resolution", settings.Resolution),
		logging.String("quality_tier", string(settings.QualityTier)),
	)
	return job, nil
}

// Get returns the job or an error wrapping services.ErrNotFound.
func (s *Scheduler) Get(ctx context.Context, id string) (*jobs.RenderJob, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get", "job "+id, nil)
	}
	return job, nil
}

// List returns jobs in creation order.
func (s *Scheduler) List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.RenderJob, error) {
	return s.store.List(ctx, filter)
}

// Logs returns the processing log of a job.
func (s *Scheduler) Logs(ctx context.Context, id string) ([]jobs.LogEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Logs(ctx, id)
}

// Cancel cancels a job. Pending jobs are cancelled without ever reaching the
// runner; running jobs are signalled and finish as cancelled. It returns
// false when the job is already terminal.
func (s *Scheduler) Cancel(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	if cancel, ok := s.running[id]; ok {
		// A run persists its terminal status before it leaves running.
		job, err := s.store.Get(ctx, id)
		if err != nil {
			s.mu.Unlock()
			return false, err
		}
		if job != nil && job.Status.IsTerminal() {
			s.mu.Unlock()
			return false, nil
		}
		cancel(services.ErrCancelled)
		s.mu.Unlock()
		s.logger.Info("cancellation requested",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_cancel_requested"),
		)
		return true, nil
	}
	wasPending := s.removePendingLocked(id)
	s.recordDepthLocked()
	s.mu.Unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	if job.Status != jobs.StatusQueued {
		// Processing without a live run: a crash leftover that Recover fails.
		return false, services.Wrap(services.ErrValidation, "queue", "cancel", fmt.Sprintf("job %s is %s but not running", id, job.Status), nil)
	}
	if err := job.Transition(jobs.StatusCancelled, s.opts.Now()); err != nil {
		return false, err
	}
	if err := s.store.Update(ctx, job); err != nil {
		return false, fmt.Errorf("persist cancelled job: %w", err)
	}
	s.appendLog(ctx, id, jobs.LogInfo, "job cancelled before start")
	s.opts.Metrics.JobFinished(string(jobs.StatusCancelled))
	s.logger.Info("queued job cancelled",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "job_cancelled"),
		logging.Bool("was_pending", wasPending),
	)
	return true, nil
}

// Start begins dispatching pending jobs. Jobs run detached from ctx; use Stop
// to end them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("queue: scheduler already stopped")
	}
	if s.started {
		return nil
	}
	s.baseCtx, s.stopAll = context.WithCancelCause(context.WithoutCancel(ctx))
	s.started = true
	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_start"),
		logging.Int("max_concurrency", s.opts.MaxConcurrency),
		logging.Int("pending", len(s.pending)),
	)
	s.dispatchLocked()
	return nil
}

// Stop interrupts running jobs and waits for them to persist their final
// status, or for ctx to expire. Pending jobs stay queued for the next
// Recover.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	running := len(s.running)
	if s.stopAll != nil {
		s.stopAll(services.ErrInterrupted)
	}
	s.mu.Unlock()

	s.logger.Info("scheduler stopping",
		logging.String(logging.FieldEventType, "scheduler_stop"),
		logging.Int("running", running),
	)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// Stats reports pending and running counts.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Pending:        len(s.pending),
		Running:        len(s.running),
		MaxConcurrency: s.opts.MaxConcurrency,
	}
}

// ActiveJobIDs returns the ids of pending and running jobs.
func (s *Scheduler) ActiveJobIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.pending)+len(s.running))
	for _, id := range s.pending {
		ids[id] = struct{}{}
	}
	for id := range s.running {
		ids[id] = struct{}{}
	}
	return ids
}

// dispatchLocked starts pending jobs in submission order while slots are
// free. Caller holds s.mu.
func (s *Scheduler) dispatchLocked() {
	if !s.started || s.stopped {
		s.recordDepthLocked()
		return
	}
	for len(s.running) < s.opts.MaxConcurrency && len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]
		ctx, cancel := context.WithCancelCause(s.baseCtx)
		s.running[id] = cancel
		s.wg.Add(1)
		go s.run(ctx, cancel, id)
	}
	s.recordDepthLocked()
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelCauseFunc, id string) {
	defer s.wg.Done()
	defer cancel(nil)

	if err := s.runner.Run(ctx, id); err != nil {
		logging.ErrorWithContext(s.logger, "job run failed", "job_run_failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job may not reach a terminal status until the next restart"),
		)
	}

	s.mu.Lock()
	delete(s.running, id)
	s.dispatchLocked()
	s.mu.Unlock()
}

func (s *Scheduler) removePendingLocked(id string) bool {
	for i, pid := range s.pending {
		if pid == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scheduler) recordDepthLocked() {
	s.opts.Metrics.QueueDepth(len(s.pending), len(s.running))
}

func (s *Scheduler) appendLog(ctx context.Context, id string, level jobs.LogLevel, message string) {
	entry := jobs.LogEntry{Timestamp: s.opts.Now(), Level: level, Message: message}
	if err := s.store.AppendLog(ctx, id, entry); err != nil {
		s.logger.Warn("failed to append processing log",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_log_failed"),
			logging.Error(err),
		)
	}
}
