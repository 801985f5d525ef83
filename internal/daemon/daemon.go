package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelforge/internal/api"
	"reelforge/internal/config"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/metrics"
	"reelforge/internal/queue"
)

// Daemon owns the scheduler lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     jobs.Store
	scheduler *queue.Scheduler
	jobsSvc   *api.JobService
	metrics   *metrics.Recorder
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
	cancel    context.CancelFunc
	loopDone  chan struct{}
}

// New constructs a daemon. rec may be nil, which disables /metrics.
func New(cfg *config.Config, store jobs.Store, scheduler *queue.Scheduler, rec *metrics.Recorder, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || scheduler == nil {
		return nil, errors.New("daemon requires config, store and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		scheduler: scheduler,
		jobsSvc:   api.NewJobService(scheduler),
		metrics:   rec,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers unfinished jobs and begins
// scheduling, maintenance and serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelforge daemon instance is already running")
	}

	if _, err := d.scheduler.Recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover jobs: %w", err)
	}
	if err := d.scheduler.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := d.api.start(loopCtx); err != nil {
		cancel()
		_ = d.scheduler.Stop(context.Background())
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.loopDone = make(chan struct{})
	go d.maintenanceLoop(loopCtx, d.loopDone)

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("reelforge daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Int("max_concurrency", d.cfg.Queue.MaxConcurrency),
	)
	return nil
}

// Stop interrupts running jobs, waits for them to persist their final status
// (bounded by ctx) and releases the daemon lock.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil
	}

	if d.cancel != nil {
		d.cancel()
		<-d.loopDone
		d.cancel = nil
	}
	d.api.stop()
	stopErr := d.scheduler.Stop(ctx)
	if stopErr != nil {
		logging.WarnWithContext(d.logger, "running jobs did not finish before shutdown deadline", "daemon_stop_timeout",
			logging.Error(stopErr),
			logging.String(logging.FieldImpact, "affected jobs are failed as interrupted on next start"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelforge daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return stopErr
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = d.Stop(ctx)
	return d.store.Close()
}

// Running reports whether the daemon is started.
func (d *Daemon) Running() bool { return d.running.Load() }

// Addr returns the API listen address, empty when the API is disabled or
// not started.
func (d *Daemon) Addr() string { return d.api.addr() }
