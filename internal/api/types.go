package api

import "reelforge/internal/jobs"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a render job in a transport-friendly format.
type Job struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"project_id,omitempty"`
	UserID      string              `json:"user_id,omitempty"`
	Status      string              `json:"status"`
	Progress    int                 `json:"progress"`
	Stage       string              `json:"stage,omitempty"`
	StageLabel  string              `json:"stage_label,omitempty"`
	Error       *jobs.JobError      `json:"error,omitempty"`
	Outputs     *jobs.Outputs       `json:"outputs,omitempty"`
	Cost        *jobs.CostBreakdown `json:"cost_breakdown,omitempty"`
	Analysis    *jobs.QualityReport `json:"analysis,omitempty"`
	SceneCount  int                 `json:"scene_count"`
	Settings    jobs.Settings       `json:"settings"`
	CreatedAt   string              `json:"created_at,omitempty"`
	StartedAt   string              `json:"started_at,omitempty"`
	CompletedAt string              `json:"completed_at,omitempty"`
	UpdatedAt   string              `json:"updated_at,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelResponse reports whether a cancel request took effect.
type CancelResponse struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status"`
}

// LogEntry is one line of a job's processing log.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Stage     string `json:"stage,omitempty"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// LogResponse wraps a job's processing log.
type LogResponse struct {
	ID      string     `json:"id"`
	Entries []LogEntry `json:"entries"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// QueueStatus summarizes the scheduler.
type QueueStatus struct {
	Pending        int            `json:"pending"`
	Running        int            `json:"running"`
	MaxConcurrency int            `json:"max_concurrency"`
	Counts         map[string]int `json:"counts"`
}

// StagingUsage reports job workspaces on disk.
type StagingUsage struct {
	Dir        string `json:"dir"`
	Workspaces int    `json:"workspaces"`
	Bytes      int64  `json:"bytes"`
}

// HostStatus reports host load sampled when status is requested.
type HostStatus struct {
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryUsedBytes uint64  `json:"memory_used_bytes"`
	MemoryAvailable uint64  `json:"memory_available_bytes"`
	CPUCores        int     `json:"cpu_cores"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"started_at,omitempty"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	Queue        QueueStatus        `json:"queue"`
	Staging      StagingUsage       `json:"staging"`
	Host         *HostStatus        `json:"host,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
