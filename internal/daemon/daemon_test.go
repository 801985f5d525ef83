package daemon_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/metrics"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/staging"
	"reelforge/internal/testsupport"
)

// instantRunner completes every job as soon as it starts.
type instantRunner struct {
	store jobs.Store
}

func (r instantRunner) Run(ctx context.Context, id string) error {
	job, err := r.store.Get(ctx, id)
	if err != nil || job == nil {
		return fmt.Errorf("load %s: %v", id, err)
	}
	now := time.Now().UTC()
	if err := job.Transition(jobs.StatusProcessing, now); err != nil {
		return err
	}
	job.Outputs = &jobs.Outputs{VideoURL: "https://cdn.example/" + id + "/video.mp4"}
	job.Cost = &jobs.CostBreakdown{TotalCost: 0.5}
	if err := job.Transition(jobs.StatusCompleted, now); err != nil {
		return err
	}
	return r.store.Update(ctx, job)
}

type env struct {
	cfg    *config.Config
	store  jobs.Store
	daemon *daemon.Daemon
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	return &env{cfg: cfg, store: store, daemon: newDaemon(t, cfg, store)}
}

func newDaemon(t *testing.T, cfg *config.Config, store jobs.Store) *daemon.Daemon {
	t.Helper()
	scheduler, err := queue.New(store, instantRunner{store: store}, queue.Options{
		MaxConcurrency: cfg.Queue.MaxConcurrency,
		KnownAvatars:   cfg.Avatar.KnownAvatars,
		StagingDir:     cfg.Paths.StagingDir,
		Logger:         logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	d, err := daemon.New(cfg, store, scheduler, metrics.New(), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	e := newEnv(t, testsupport.WithStubbedBinaries())
	ctx := context.Background()

	if err := e.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := e.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != e.cfg.LockPath() || status.DatabasePath != e.cfg.DatabasePath() {
		t.Fatalf("unexpected paths in status: %+v", status)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("expected stubbed encoder to be available, got %+v", status.Dependencies)
	}
	if e.daemon.Addr() == "" {
		t.Fatal("expected API listener address")
	}

	// Second start should fail
	if err := e.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	if err := e.daemon.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other := newDaemon(t, e.cfg, e.store)
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected second instance to be refused by the lock")
	}
}

func TestDaemonStartRecoversJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	testsupport.NewJob(t, e.store, "queued-1", testsupport.Scenes(1, 3), testsupport.Settings())
	stuck := testsupport.NewJob(t, e.store, "stuck-1", testsupport.Scenes(1, 3), testsupport.Settings())
	if err := stuck.Transition(jobs.StatusProcessing, time.Now()); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := e.store.Update(ctx, stuck); err != nil {
		t.Fatalf("Update: %v", err)
	}
	orphan := filepath.Join(e.cfg.Paths.StagingDir, staging.DirName("stuck-1"))
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := e.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		job := testsupport.MustGetJob(t, e.store, "queued-1")
		if job.Status == jobs.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("requeued job never completed, status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	failed := testsupport.MustGetJob(t, e.store, "stuck-1")
	if failed.Status != jobs.StatusFailed || failed.Error == nil || failed.Error.Kind != services.KindInterrupted {
		t.Fatalf("expected interrupted failure, got %+v", failed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("orphaned workspace should be removed, stat err %v", err)
	}
}

func TestSweepRemovesStaleWorkspacesAndOldLogs(t *testing.T) {
	e := newEnv(t)
	e.cfg.Maintenance.StaleAfterHours = 1
	e.cfg.Logging.RetentionDays = 1

	old := time.Now().Add(-48 * time.Hour)
	stale := filepath.Join(e.cfg.Paths.StagingDir, staging.DirName("old-job"))
	fresh := filepath.Join(e.cfg.Paths.StagingDir, staging.DirName("new-job"))
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	oldLog := filepath.Join(e.cfg.Paths.LogDir, "reelforged-20250101.log")
	current := filepath.Join(e.cfg.Paths.LogDir, logging.LogFileName)
	for _, path := range []string{oldLog, current} {
		if err := os.WriteFile(path, []byte("log\n"), 0o644); err != nil {
			t.Fatalf("write log: %v", err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := e.daemon.Sweep(context.Background())
	if len(result.Workspaces.Removed) != 1 || result.Workspaces.Removed[0] != stale {
		t.Fatalf("expected only the stale workspace removed, got %v", result.Workspaces.Removed)
	}
	if result.LogsPruned != 1 {
		t.Fatalf("expected 1 pruned log, got %d", result.LogsPruned)
	}
	if _, err := os.Stat(current); err != nil {
		t.Fatalf("current log must survive pruning: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh workspace must survive: %v", err)
	}
}
