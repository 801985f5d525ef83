package daemon

import (
	"context"
	"path/filepath"
	"time"

	"reelforge/internal/logging"
	"reelforge/internal/staging"
)

// SweepResult summarizes one maintenance pass.
type SweepResult struct {
	Workspaces staging.CleanResult
	LogsPruned int
}

func (d *Daemon) maintenanceLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	interval := d.cfg.Maintenance.SweepInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep removes stale workspaces of jobs that are no longer active and prunes
// daemon logs past the retention window.
func (d *Daemon) Sweep(ctx context.Context) SweepResult {
	result := SweepResult{
		Workspaces: staging.CleanStale(ctx, d.cfg.Paths.StagingDir, d.cfg.Maintenance.StaleAfter(), d.scheduler.ActiveJobIDs(), d.logger),
		LogsPruned: logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, "*.log", d.cfg.Logging.RetentionDays,
			filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName)),
	}
	if len(result.Workspaces.Removed) > 0 || len(result.Workspaces.Errors) > 0 || result.LogsPruned > 0 {
		d.logger.Info("maintenance sweep finished",
			logging.String(logging.FieldEventType, "maintenance_sweep"),
			logging.Int("workspaces_removed", len(result.Workspaces.Removed)),
			logging.Int("workspace_errors", len(result.Workspaces.Errors)),
			logging.Int("logs_pruned", result.LogsPruned),
		)
	}
	return result
}
