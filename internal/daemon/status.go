package daemon

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"reelforge/internal/api"
	"reelforge/internal/deps"
	"reelforge/internal/logging"
	"reelforge/internal/staging"
)

const cpuSampleWindow = 100 * time.Millisecond

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	stats := d.scheduler.Stats()
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Queue: api.QueueStatus{
			Pending:        stats.Pending,
			Running:        stats.Running,
			MaxConcurrency: stats.MaxConcurrency,
		},
		Staging: api.StagingUsage{Dir: d.cfg.Paths.StagingDir},
		Host:    sampleHost(ctx),
	}
	d.mu.Lock()
	if !d.startedAt.IsZero() && status.Running {
		status.StartedAt = d.startedAt.Format(time.RFC3339)
	}
	d.mu.Unlock()

	if counts, err := d.jobsSvc.Counts(ctx); err != nil {
		d.logger.Warn("job counts unavailable", logging.Error(err))
	} else {
		status.Queue.Counts = counts
	}
	if usage, err := staging.Summarize(d.cfg.Paths.StagingDir); err != nil {
		d.logger.Warn("staging usage unavailable", logging.Error(err))
	} else {
		status.Staging.Workspaces = usage.Workspaces
		status.Staging.Bytes = usage.Bytes
	}

	for _, dep := range deps.CheckBinaries([]deps.Requirement{deps.EncoderRequirement(d.cfg.EncoderBinary())}) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return status
}

// sampleHost returns nil when host counters cannot be read.
func sampleHost(ctx context.Context) *api.HostStatus {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	host := &api.HostStatus{
		MemoryUsedBytes: vm.Used,
		MemoryAvailable: vm.Available,
		CPUCores:        runtime.NumCPU(),
	}
	if pct, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err == nil && len(pct) > 0 {
		host.CPUPercent = pct[0]
	}
	return host
}
