// Package api defines the wire-format types shared by the daemon's HTTP
// server and the reelforge CLI, plus the client the CLI uses.
//
// # Key Types
//
// Job: transport representation of a render job with progress, stage label,
// terminal error, outputs, cost breakdown and quality report.
//
// DaemonStatus: daemon running state, scheduler counts, staging usage, host
// load and dependency availability.
//
// ErrorResponse: error payload carrying the error kind and, for rejected
// submissions, the offending fields.
//
// # Converters
//
// FromJob / FromJobs: jobs.RenderJob -> Job with RFC3339 timestamps.
//
// FromLogEntries: processing log entries -> LogEntry.
//
// # Design Notes
//
// DTOs use snake_case JSON tags so payloads match the script files users
// submit. Internal enums (jobs.Status, jobs.Stage) are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds.
package api
