package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"reelforge/internal/api"
)

func buildJobListRows(list []api.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		stage := job.StageLabel
		if stage == "" {
			stage = "-"
		}
		rows = append(rows, []string{
			job.ID,
			job.Status,
			stage,
			strconv.Itoa(job.Progress) + "%",
			strconv.Itoa(job.SceneCount),
			formatTimestamp(job.CreatedAt),
		})
	}
	return rows
}

func renderJobDetail(job api.Job) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%-14s %s\n", label+":", value)
	}
	line("Job", job.ID)
	line("Status", job.Status)
	if job.StageLabel != "" {
		line("Stage", fmt.Sprintf("%s (%d%%)", job.StageLabel, job.Progress))
	} else {
		line("Progress", fmt.Sprintf("%d%%", job.Progress))
	}
	line("Project", job.ProjectID)
	line("User", job.UserID)
	line("Scenes", strconv.Itoa(job.SceneCount))
	line("Settings", fmt.Sprintf("%s %s %s/%s %dfps",
		job.Settings.Resolution, job.Settings.QualityTier, job.Settings.Codec, job.Settings.Format, job.Settings.FPS))
	line("Created", formatTimestamp(job.CreatedAt))
	line("Started", formatTimestamp(job.StartedAt))
	line("Completed", formatTimestamp(job.CompletedAt))
	if job.Error != nil {
		line("Error", fmt.Sprintf("%s: %s", job.Error.Kind, job.Error.Message))
	}
	if job.Outputs != nil {
		line("Video", job.Outputs.VideoURL)
		line("Thumbnail", job.Outputs.ThumbnailURL)
		line("Duration", fmt.Sprintf("%.1fs", job.Outputs.DurationSeconds))
		line("Size", formatBytes(job.Outputs.FileSizeBytes))
	}
	if job.Cost != nil {
		line("Cost", fmt.Sprintf("$%.4f (tts %.4f, avatar %.4f, render %.4f, storage %.4f)",
			job.Cost.TotalCost, job.Cost.TTSCost, job.Cost.AvatarCost, job.Cost.RenderingCost, job.Cost.StorageCost))
	}
	if job.Analysis != nil {
		line("Quality", fmt.Sprintf("video %.2f, audio %.2f, lip sync %.2f",
			job.Analysis.VideoScore, job.Analysis.AudioScore, job.Analysis.LipSyncScore))
	}
	return b.String()
}

func formatLogEntry(entry api.LogEntry) string {
	stage := ""
	if entry.Stage != "" {
		stage = " (" + entry.Stage + ")"
	}
	return fmt.Sprintf("%s %-5s%s %s", formatTimestamp(entry.Timestamp), strings.ToUpper(entry.Level), stage, entry.Message)
}

// formatTimestamp renders API timestamps in local time, passing through
// values it cannot parse.
func formatTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parsed, ok := api.ParseTime(value)
	if !ok {
		return value
	}
	return parsed.Local().Format(time.DateTime)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
