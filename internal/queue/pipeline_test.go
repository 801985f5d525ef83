package queue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/objectstore"
	"reelforge/internal/testsupport"
)

func TestPendingCancelMakesNoCollaboratorCalls(t *testing.T) {
	base := t.TempDir()
	store := jobs.NewMemoryStore()
	synth := &testsupport.Synthesizer{Duration: 4}
	avatars := &testsupport.AvatarRenderer{Block: true, Started: make(chan struct{}, 4)}
	exec := &testsupport.EncoderExecutor{}
	uploader, err := objectstore.NewLocal(filepath.Join(base, "renders"), "https://cdn.example", "")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	orch, err := pipeline.New(pipeline.Dependencies{
		Store:       store,
		Synthesizer: synth,
		Avatars:     avatars,
		Storage:     uploader,
		Encoder:     testsupport.NewMonitor(t, exec),
		Logger:      logging.NewNop(),
	}, pipeline.Options{
		StagingDir: filepath.Join(base, "staging"),
		Retry:      pipeline.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second},
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	s, err := queue.New(store, orch, queue.Options{MaxConcurrency: 1, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	req := queue.SubmitRequest{
		Scenes:   []queue.SceneRequest{{Text: "Only scene.", AvatarID: "anna"}},
		Settings: queue.SettingsRequest{Resolution: "720p"},
	}
	first, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	select {
	case <-avatars.Started:
	case <-time.After(3 * time.Second):
		t.Fatal("first job never reached avatar rendering")
	}

	second, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}
	ok, err := s.Cancel(context.Background(), second.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel pending = %v, %v", ok, err)
	}
	if synth.Count() != 1 || avatars.Count() != 1 {
		t.Fatalf("pending cancel reached collaborators: synth=%d avatar=%d", synth.Count(), avatars.Count())
	}
	if got := testsupport.MustGetJob(t, store, second.ID); got.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	interrupted := testsupport.MustGetJob(t, store, first.ID)
	if interrupted.Status != jobs.StatusFailed || interrupted.Error == nil || interrupted.Error.Kind != services.KindInterrupted {
		t.Fatalf("expected first job interrupted, got %+v", interrupted)
	}
	if synth.Count() != 1 || avatars.Count() != 1 {
		t.Fatalf("cancelled job ran after stop: synth=%d avatar=%d", synth.Count(), avatars.Count())
	}
	if len(exec.Runs()) != 0 {
		t.Fatalf("encoder ran for an interrupted job: %v", exec.Runs())
	}
}
