package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

// completingRunner finishes every job it is handed.
type completingRunner struct {
	store jobs.Store
}

func (r completingRunner) Run(ctx context.Context, id string) error {
	job, err := r.store.Get(ctx, id)
	if err != nil || job == nil {
		return fmt.Errorf("load %s: %v", id, err)
	}
	now := time.Now().UTC()
	if err := job.Transition(jobs.StatusProcessing, now); err != nil {
		return err
	}
	job.Outputs = &jobs.Outputs{VideoURL: "https://cdn.example/" + id + ".mp4", DurationSeconds: 4, FileSizeBytes: 2048}
	job.Cost = &jobs.CostBreakdown{TTSCost: 0.01, AvatarCost: 0.2, TotalCost: 0.21}
	if err := job.Transition(jobs.StatusCompleted, now); err != nil {
		return err
	}
	if err := r.store.Update(ctx, job); err != nil {
		return err
	}
	return r.store.AppendLog(ctx, id, jobs.LogEntry{Timestamp: now, Level: jobs.LogInfo, Message: "render complete"})
}

type cliTestEnv struct {
	cfg        *config.Config
	store      jobs.Store
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithKnownAvatars("anna"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	scheduler, err := queue.New(store, completingRunner{store: store}, queue.Options{
		MaxConcurrency: 1,
		KnownAvatars:   cfg.Avatar.KnownAvatars,
		StagingDir:     cfg.Paths.StagingDir,
		Logger:         logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	d, err := daemon.New(cfg, store, scheduler, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		configPath: configPath,
		apiAddr:    d.Addr(),
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, append([]string{"--api", e.apiAddr}, args...), e.configPath)
	return out, err
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
