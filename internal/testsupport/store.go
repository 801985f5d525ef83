package testsupport

import (
	"context"
	"fmt"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/jobs"
)

// MustOpenStore opens a SQLite job store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.SQLiteStore {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Scenes returns n scenes whose target duration is seconds each.
func Scenes(n int, seconds float64) []jobs.Scene {
	scenes := make([]jobs.Scene, n)
	for i := range scenes {
		d := seconds
		scenes[i] = jobs.Scene{
			ID:             fmt.Sprintf("scene-%d", i+1),
			Text:           fmt.Sprintf("Narration for scene %d.", i+1),
			AvatarID:       "anna",
			TargetDuration: &d,
		}
	}
	return scenes
}

// Settings returns standard-tier 720p h264/mp4 settings.
func Settings() jobs.Settings {
	return jobs.Settings{
		Resolution:  "720p",
		QualityTier: jobs.QualityStandard,
		Codec:       "h264",
		Format:      "mp4",
		FPS:         30,
	}
}

// NewJob persists a queued job and returns it.
func NewJob(t testing.TB, store jobs.Store, id string, scenes []jobs.Scene, settings jobs.Settings) *jobs.RenderJob {
	t.Helper()

	job := &jobs.RenderJob{
		ID:        id,
		ProjectID: "project-1",
		UserID:    "user-1",
		Status:    jobs.StatusQueued,
		Scenes:    scenes,
		Settings:  settings,
	}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("create job %s: %v", id, err)
	}
	return job
}

// MustGetJob loads a job and fails the test when it is missing.
func MustGetJob(t testing.TB, store jobs.Store, id string) *jobs.RenderJob {
	t.Helper()

	job, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job %s: %v", id, err)
	}
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	return job
}
