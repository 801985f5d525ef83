package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelforge/internal/services"
)

type encodedJob struct {
	errorKind    any
	errorMessage any
	outputs      any
	cost         any
	analysis     any
	scenes       string
	settings     string
}

func encodeJob(job *RenderJob) (encodedJob, error) {
	var enc encodedJob
	var err error
	if job.Error != nil {
		enc.errorKind = string(job.Error.Kind)
		enc.errorMessage = job.Error.Message
	}
	if enc.outputs, err = encodeOptional(job.Outputs); err != nil {
		return enc, fmt.Errorf("encode outputs: %w", err)
	}
	if enc.cost, err = encodeOptional(job.Cost); err != nil {
		return enc, fmt.Errorf("encode cost: %w", err)
	}
	if enc.analysis, err = encodeOptional(job.Analysis); err != nil {
		return enc, fmt.Errorf("encode analysis: %w", err)
	}
	scenes := job.Scenes
	if scenes == nil {
		scenes = []Scene{}
	}
	data, err := json.Marshal(scenes)
	if err != nil {
		return enc, fmt.Errorf("encode scenes: %w", err)
	}
	enc.scenes = string(data)
	if data, err = json.Marshal(job.Settings); err != nil {
		return enc, fmt.Errorf("encode settings: %w", err)
	}
	enc.settings = string(data)
	return enc, nil
}

// Create inserts a new job record.
func (s *SQLiteStore) Create(ctx context.Context, job *RenderJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is required", services.ErrValidation)
	}
	enc, err := encodeJob(job)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	_, err = s.execWithRetry(ctx,
		`INSERT INTO render_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		nullableString(job.ProjectID),
		nullableString(job.UserID),
		string(job.Status),
		job.Progress,
		nullableString(string(job.Stage)),
		enc.errorKind,
		enc.errorMessage,
		enc.outputs,
		enc.cost,
		enc.analysis,
		enc.scenes,
		enc.settings,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrExists, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by identifier. It returns nil, nil when the job is unknown.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*RenderJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists the mutable fields of an existing job.
func (s *SQLiteStore) Update(ctx context.Context, job *RenderJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", services.ErrValidation)
	}
	enc, err := encodeJob(job)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE render_jobs
         SET status = ?, progress = ?, stage = ?, error_kind = ?, error_message = ?,
             outputs_json = ?, cost_json = ?, analysis_json = ?,
             started_at = ?, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		string(job.Status),
		job.Progress,
		nullableString(string(job.Stage)),
		enc.errorKind,
		enc.errorMessage,
		enc.outputs,
		enc.cost,
		enc.analysis,
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, job.ID)
	}
	return nil
}

// AppendLog adds one entry to the job's processing log.
func (s *SQLiteStore) AppendLog(ctx context.Context, id string, entry LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Level == "" {
		entry.Level = LogInfo
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO job_logs (job_id, ts, stage, level, message) VALUES (?, ?, ?, ?, ?)`,
		id,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		nullableString(string(entry.Stage)),
		string(entry.Level),
		entry.Message,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
		}
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// Logs returns the processing log in insertion order.
func (s *SQLiteStore) Logs(ctx context.Context, id string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, stage, level, message FROM job_logs WHERE job_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			ts      string
			stage   sql.NullString
			level   string
			message string
		)
		if err := rows.Scan(&ts, &stage, &level, &message); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entry := LogEntry{Stage: Stage(stage.String), Level: LogLevel(level), Message: message}
		if parsed, err := parseTimeString(ts); err == nil {
			entry.Timestamp = parsed
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// List returns jobs in creation order, optionally filtered by status.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*RenderJob, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs`
	args := make([]any, 0, len(filter.Statuses)+1)
	if len(filter.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(filter.Statuses)) + `)`
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY seq`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*RenderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
