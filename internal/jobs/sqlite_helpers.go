package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelforge/internal/services"
)

const jobColumns = "id, project_id, user_id, status, progress, stage, error_kind, error_message, outputs_json, cost_json, analysis_json, scenes_json, settings_json, created_at, started_at, completed_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*RenderJob, error) {
	var (
		id           string
		projectID    sql.NullString
		userID       sql.NullString
		statusStr    string
		progress     int
		stage        sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		outputsJSON  sql.NullString
		costJSON     sql.NullString
		analysisJSON sql.NullString
		scenesJSON   string
		settingsJSON string
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id, &projectID, &userID, &statusStr, &progress, &stage,
		&errorKind, &errorMessage, &outputsJSON, &costJSON, &analysisJSON,
		&scenesJSON, &settingsJSON, &createdRaw, &startedRaw, &completedRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &RenderJob{
		ID:        id,
		ProjectID: projectID.String,
		UserID:    userID.String,
		Status:    Status(statusStr),
		Progress:  progress,
		Stage:     Stage(stage.String),
	}
	if errorKind.Valid {
		job.Error = &JobError{Kind: services.ErrorKind(errorKind.String), Message: errorMessage.String}
	}
	if err := decodeOptional(outputsJSON, &job.Outputs); err != nil {
		return nil, fmt.Errorf("decode outputs for %s: %w", id, err)
	}
	if err := decodeOptional(costJSON, &job.Cost); err != nil {
		return nil, fmt.Errorf("decode cost for %s: %w", id, err)
	}
	if err := decodeOptional(analysisJSON, &job.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(scenesJSON), &job.Scenes); err != nil {
		return nil, fmt.Errorf("decode scenes for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &job.Settings); err != nil {
		return nil, fmt.Errorf("decode settings for %s: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	return job, nil
}

func decodeOptional[T any](raw sql.NullString, dst **T) error {
	if !raw.Valid || raw.String == "" {
		*dst = nil
		return nil
	}
	value := new(T)
	if err := json.Unmarshal([]byte(raw.String), value); err != nil {
		return err
	}
	*dst = value
	return nil
}

func encodeOptional[T any](value *T) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
