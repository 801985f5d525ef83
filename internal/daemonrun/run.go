package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/deps"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/metrics"
	"reelforge/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// ShutdownTimeout bounds how long running jobs get to record their
	// interruption. Zero uses 30 seconds.
	ShutdownTimeout time.Duration
}

// Run starts the reelforge daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelforged-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneLogs(logger, cfg.Paths.LogDir, "reelforged-*.log", cfg.Logging.RetentionDays,
		logPath, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "reelforged.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	rec := metrics.New()
	orchestrator, err := BuildPipeline(signalCtx, cfg, store, rec, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}
	scheduler, err := queue.New(store, orchestrator, queue.Options{
		MaxConcurrency: cfg.Queue.MaxConcurrency,
		KnownAvatars:   cfg.Avatar.KnownAvatars,
		StagingDir:     cfg.Paths.StagingDir,
		Metrics:        rec,
		Logger:         logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create scheduler: %w", err)
	}

	d, err := daemon.New(cfg, store, scheduler, rec, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running daemon and job database access"),
		)
		return err
	}
	logger.Info("reelforge daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("api", d.Addr()),
		logging.String("log_path", logPath),
	)

	<-signalCtx.Done()
	logger.Info("reelforge daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	encoder := deps.CheckEncoder(cfg.EncoderBinary())
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("encoder_available", encoder.Available),
		logging.String("encoder_binary", encoder.Command),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.Bool("synthesis_key_present", cfg.Synthesis.APIKey != ""),
		logging.Bool("avatar_key_present", cfg.Avatar.APIKey != ""),
		logging.Bool("face_enhancer_configured", cfg.PostProcessing.FaceEnhancerURL != ""),
		logging.Int("known_avatars", len(cfg.Avatar.KnownAvatars)),
	)
	if !encoder.Available {
		logging.WarnWithContext(logger, "encoder binary unavailable", "dependency_missing",
			logging.String("detail", encoder.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set encoder.binary"),
			logging.String(logging.FieldImpact, "jobs fail at the encoding stage"),
		)
	}
}
