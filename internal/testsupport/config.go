package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Collaborator URLs point at an unroutable placeholder until overridden.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.OutputDir = filepath.Join(base, "renders")
	cfgVal.Synthesis.BaseURL = "http://127.0.0.1:1"
	cfgVal.Avatar.BaseURL = "http://127.0.0.1:1"
	cfgVal.Retry.BaseDelaySeconds = 0.001
	cfgVal.Retry.MaxDelaySeconds = 0.01

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithCollaborators points synthesis and avatar rendering at baseURL.
func WithCollaborators(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Synthesis.BaseURL = baseURL
		b.cfg.Avatar.BaseURL = baseURL
	}
}

// WithKnownAvatars restricts submit-time avatar validation.
func WithKnownAvatars(ids ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Avatar.KnownAvatars = append([]string(nil), ids...)
	}
}

// WithConcurrency sets the job and scene concurrency limits.
func WithConcurrency(jobs, scenes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxConcurrency = jobs
		b.cfg.Queue.SceneConcurrency = scenes
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the encoder binary is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
