package api

import (
	"time"

	"reelforge/internal/jobs"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.RenderJob) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:         job.ID,
		ProjectID:  job.ProjectID,
		UserID:     job.UserID,
		Status:     string(job.Status),
		Progress:   job.Progress,
		Stage:      string(job.Stage),
		Error:      job.Error,
		Outputs:    job.Outputs,
		Cost:       job.Cost,
		Analysis:   job.Analysis,
		SceneCount: len(job.Scenes),
		Settings:   job.Settings,
		CreatedAt:  formatTime(job.CreatedAt),
		UpdatedAt:  formatTime(job.UpdatedAt),
	}
	if job.Stage != "" {
		dto.StageLabel = job.Stage.Label()
	}
	if job.StartedAt != nil {
		dto.StartedAt = formatTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = formatTime(*job.CompletedAt)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(list []*jobs.RenderJob) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromLogEntries converts processing log entries.
func FromLogEntries(entries []jobs.LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntry{
			Timestamp: formatTime(e.Timestamp),
			Stage:     string(e.Stage),
			Level:     string(e.Level),
			Message:   e.Message,
		})
	}
	return out
}

// ParseTime parses a timestamp produced by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
