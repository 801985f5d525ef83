package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reelforge/internal/jobs"
	"reelforge/internal/services"
)

func storeFactories(t *testing.T) map[string]func() jobs.Store {
	t.Helper()
	return map[string]func() jobs.Store{
		"memory": func() jobs.Store { return jobs.NewMemoryStore() },
		"sqlite": func() jobs.Store {
			store, err := jobs.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			return store
		},
	}
}

func newJob(id string) *jobs.RenderJob {
	d := 5.0
	return &jobs.RenderJob{
		ID:        id,
		ProjectID: "proj",
		Status:    jobs.StatusQueued,
		Scenes: []jobs.Scene{
			{ID: "s1", Text: "hello", AvatarID: "anna", TargetDuration: &d},
			{ID: "s2", Text: "world", AvatarID: "ben", Background: jobs.Background{Color: "#000000"}},
		},
		Settings: jobs.Settings{
			Resolution:     "1080p",
			QualityTier:    jobs.QualityStandard,
			Codec:          "h264",
			Format:         "mp4",
			FPS:            30,
			PostProcessing: jobs.PostProcessing{ColorCorrection: true},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			if err := store.Create(ctx, newJob("job-1")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := store.Create(ctx, newJob("job-1")); !errors.Is(err, jobs.ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}

			got, err := store.Get(ctx, "job-1")
			if err != nil || got == nil {
				t.Fatalf("Get: %v %v", got, err)
			}
			if got.Status != jobs.StatusQueued || len(got.Scenes) != 2 || got.Settings.Codec != "h264" {
				t.Fatalf("unexpected job: %+v", got)
			}
			if got.Scenes[0].TargetDuration == nil || *got.Scenes[0].TargetDuration != 5 {
				t.Fatalf("target duration lost: %+v", got.Scenes[0])
			}
			if !got.Settings.PostProcessing.ColorCorrection || got.Scenes[1].Background.Color != "#000000" {
				t.Fatalf("settings lost: %+v", got)
			}
			if got.CreatedAt.IsZero() {
				t.Fatal("expected created_at")
			}

			missing, err := store.Get(ctx, "nope")
			if err != nil || missing != nil {
				t.Fatalf("expected nil, nil for missing job, got %v %v", missing, err)
			}

			now := time.Now().UTC()
			if err := got.Transition(jobs.StatusProcessing, now); err != nil {
				t.Fatalf("transition: %v", err)
			}
			got.Stage = jobs.StageComposition
			got.Progress = 47
			if err := store.Update(ctx, got); err != nil {
				t.Fatalf("Update: %v", err)
			}
			if err := got.Transition(jobs.StatusCompleted, now.Add(time.Second)); err != nil {
				t.Fatalf("transition: %v", err)
			}
			got.Outputs = &jobs.Outputs{VideoURL: "https://cdn/v.mp4", ThumbnailURL: "https://cdn/t.jpg", DurationSeconds: 12.5, FileSizeBytes: 1024}
			got.Cost = &jobs.CostBreakdown{TTSCost: 0.3, AvatarCost: 0.75, TotalCost: 1.06}
			got.Analysis = &jobs.QualityReport{LipSyncScore: 0.9}
			if err := store.Update(ctx, got); err != nil {
				t.Fatalf("Update: %v", err)
			}

			reloaded, err := store.Get(ctx, "job-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if reloaded.Status != jobs.StatusCompleted || reloaded.Progress != 100 || reloaded.Stage != jobs.StageComposition {
				t.Fatalf("unexpected reloaded job: %+v", reloaded)
			}
			if reloaded.Outputs == nil || reloaded.Outputs.FileSizeBytes != 1024 || reloaded.Cost.TotalCost != 1.06 {
				t.Fatalf("outputs/cost lost: %+v", reloaded)
			}
			if reloaded.StartedAt == nil || reloaded.CompletedAt == nil || reloaded.Analysis == nil {
				t.Fatalf("timestamps or analysis lost: %+v", reloaded)
			}

			if err := store.Update(ctx, newJob("ghost")); !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreErrorRoundTrip(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			job := newJob("job-err")
			if err := store.Create(ctx, job); err != nil {
				t.Fatalf("Create: %v", err)
			}
			job.Status = jobs.StatusFailed
			job.Error = &jobs.JobError{Kind: services.KindEncoderProcess, Message: "exit status 1"}
			if err := store.Update(ctx, job); err != nil {
				t.Fatalf("Update: %v", err)
			}
			got, _ := store.Get(ctx, "job-err")
			if got.Error == nil || got.Error.Kind != services.KindEncoderProcess || got.Error.Message != "exit status 1" {
				t.Fatalf("unexpected error: %+v", got.Error)
			}
		})
	}
}

func TestStoreLogsPreserveOrder(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			if err := store.Create(ctx, newJob("job-log")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			messages := []string{"stage preparation started", "retrying synthesis", "stage synthesis completed"}
			for i, msg := range messages {
				level := jobs.LogInfo
				if i == 1 {
					level = jobs.LogWarn
				}
				if err := store.AppendLog(ctx, "job-log", jobs.LogEntry{Stage: jobs.StageSynthesis, Level: level, Message: msg}); err != nil {
					t.Fatalf("AppendLog: %v", err)
				}
			}
			entries, err := store.Logs(ctx, "job-log")
			if err != nil {
				t.Fatalf("Logs: %v", err)
			}
			if len(entries) != len(messages) {
				t.Fatalf("got %d entries, want %d", len(entries), len(messages))
			}
			for i, entry := range entries {
				if entry.Message != messages[i] || entry.Timestamp.IsZero() || entry.Stage != jobs.StageSynthesis {
					t.Fatalf("entry %d unexpected: %+v", i, entry)
				}
			}
			if entries[1].Level != jobs.LogWarn {
				t.Fatalf("expected warn level, got %q", entries[1].Level)
			}
			if err := store.AppendLog(ctx, "ghost", jobs.LogEntry{Message: "x"}); !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected ErrNotFound for unknown job, got %v", err)
			}
		})
	}
}

func TestStoreListFiltersInCreationOrder(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			for _, id := range []string{"c", "a", "b"} {
				if err := store.Create(ctx, newJob(id)); err != nil {
					t.Fatalf("Create %s: %v", id, err)
				}
			}
			running, _ := store.Get(ctx, "a")
			running.Status = jobs.StatusProcessing
			if err := store.Update(ctx, running); err != nil {
				t.Fatalf("Update: %v", err)
			}

			all, err := store.List(ctx, jobs.ListFilter{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 || all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
				t.Fatalf("unexpected order: %v", ids(all))
			}

			queued, err := store.List(ctx, jobs.ListFilter{Statuses: []jobs.Status{jobs.StatusQueued}})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if got := ids(queued); len(got) != 2 || got[0] != "c" || got[1] != "b" {
				t.Fatalf("unexpected queued ids: %v", got)
			}

			limited, _ := store.List(ctx, jobs.ListFilter{Limit: 1})
			if len(limited) != 1 || limited[0].ID != "c" {
				t.Fatalf("unexpected limited list: %v", ids(limited))
			}
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore()
	if err := store.Create(ctx, newJob("copy")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := store.Get(ctx, "copy")
	got.Progress = 80
	again, _ := store.Get(ctx, "copy")
	if again.Progress != 0 {
		t.Fatalf("mutation leaked into store: %d", again.Progress)
	}
}

func TestSQLiteStoreReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := jobs.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.Create(context.Background(), newJob("persist")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.Close()

	reopened, err := jobs.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "persist")
	if err != nil || got == nil {
		t.Fatalf("expected persisted job, got %v %v", got, err)
	}
}

func ids(list []*jobs.RenderJob) []string {
	out := make([]string, len(list))
	for i, job := range list {
		out[i] = job.ID
	}
	return out
}
