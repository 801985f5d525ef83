package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue and host status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintln(stdout, strings.Join(renderDaemonStatus(status, shouldColorize(stdout)), "\n"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print status as JSON")
	return cmd
}

func renderDaemonStatus(status api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d, since %s)", status.PID, formatTimestamp(status.StartedAt)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Queue", colorize)...)
	slots := statusOK
	if status.Queue.Pending > 0 && status.Queue.Running >= status.Queue.MaxConcurrency {
		slots = statusWarn
	}
	lines = append(lines, renderStatusLine("Workers", slots,
		fmt.Sprintf("%d of %d busy, %d waiting", status.Queue.Running, status.Queue.MaxConcurrency, status.Queue.Pending), colorize))
	for _, st := range jobs.AllStatuses() {
		count := status.Queue.Counts[string(st)]
		kind := statusInfo
		if st == jobs.StatusFailed && count > 0 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(titleCase(string(st)), kind, fmt.Sprintf("%d", count), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Resources", colorize)...)
	lines = append(lines, renderStatusLine("Staging", statusInfo,
		fmt.Sprintf("%d workspaces, %s in %s", status.Staging.Workspaces, formatBytes(status.Staging.Bytes), status.Staging.Dir), colorize))
	if host := status.Host; host != nil {
		lines = append(lines, renderStatusLine("Host", statusInfo,
			fmt.Sprintf("%d cores at %.0f%% CPU, %s used, %s available",
				host.CPUCores, host.CPUPercent, formatBytes(int64(host.MemoryUsedBytes)), formatBytes(int64(host.MemoryAvailable))), colorize))
	}
	for _, dep := range status.Dependencies {
		kind := statusOK
		message := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			message = strings.TrimSpace(dep.Command + " " + dep.Detail)
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
	}
	return lines
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
