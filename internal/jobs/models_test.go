package jobs_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reelforge/internal/jobs"
	"reelforge/internal/services"
)

func TestValidateTransition(t *testing.T) {
	allowed := [][2]jobs.Status{
		{jobs.StatusQueued, jobs.StatusProcessing},
		{jobs.StatusQueued, jobs.StatusCancelled},
		{jobs.StatusProcessing, jobs.StatusCompleted},
		{jobs.StatusProcessing, jobs.StatusFailed},
		{jobs.StatusProcessing, jobs.StatusCancelled},
	}
	for _, pair := range allowed {
		if err := jobs.ValidateTransition(pair[0], pair[1]); err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", pair[0], pair[1], err)
		}
	}
	denied := [][2]jobs.Status{
		{jobs.StatusQueued, jobs.StatusCompleted},
		{jobs.StatusCompleted, jobs.StatusProcessing},
		{jobs.StatusCancelled, jobs.StatusQueued},
		{jobs.StatusFailed, jobs.StatusCompleted},
	}
	for _, pair := range denied {
		err := jobs.ValidateTransition(pair[0], pair[1])
		if err == nil || !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s -> %s should be rejected, got %v", pair[0], pair[1], err)
		}
	}
}

func TestTransitionMaintainsTerminalInvariants(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &jobs.RenderJob{ID: "a", Status: jobs.StatusQueued}
	if err := job.Transition(jobs.StatusProcessing, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(now) {
		t.Fatalf("expected started_at set, got %v", job.StartedAt)
	}
	job.Progress = 99
	if err := job.Transition(jobs.StatusCompleted, now.Add(time.Minute)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if job.Progress != 100 || job.CompletedAt == nil {
		t.Fatalf("completed job must report 100 and completion time: %+v", job)
	}

	failed := &jobs.RenderJob{ID: "b", Status: jobs.StatusProcessing, Progress: 42, Outputs: &jobs.Outputs{VideoURL: "x"}}
	if err := failed.Transition(jobs.StatusFailed, now); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if failed.Outputs != nil || failed.Progress != 42 {
		t.Fatalf("failed job must keep progress and drop outputs: %+v", failed)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := jobs.ParseStatus(" Processing "); !ok || status != jobs.StatusProcessing {
		t.Fatalf("unexpected parse: %q %v", status, ok)
	}
	if _, ok := jobs.ParseStatus("paused"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if !jobs.StatusCancelled.IsTerminal() || jobs.StatusQueued.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestOverallProgressMapsStageSlices(t *testing.T) {
	cases := []struct {
		stage   jobs.Stage
		percent float64
		want    int
	}{
		{jobs.StagePreparation, 0, 0},
		{jobs.StagePreparation, 100, 5},
		{jobs.StageSynthesis, 50, 12},
		{jobs.StageAvatarRendering, 0, 20},
		{jobs.StageComposition, 50, 52},
		{jobs.StagePostProcessing, 100, 80},
		{jobs.StageUpload, 100, 90},
		{jobs.StageAnalysis, 100, 99},
		{jobs.StageComposition, 150, 65},
		{jobs.StageComposition, -5, 40},
		{jobs.Stage("unknown"), 50, 0},
	}
	for _, tc := range cases {
		if got := jobs.OverallProgress(tc.stage, tc.percent); got != tc.want {
			t.Fatalf("OverallProgress(%s, %v) = %d, want %d", tc.stage, tc.percent, got, tc.want)
		}
	}

	total := 0
	for _, stage := range jobs.Stages {
		total += stage.Weight()
	}
	if total != 100 {
		t.Fatalf("stage weights sum to %d, want 100", total)
	}
}

func TestStageLabel(t *testing.T) {
	if got := jobs.StageAvatarRendering.Label(); got != "Avatar Rendering" {
		t.Fatalf("label = %q", got)
	}
	if got := jobs.Stage("").Label(); got != "" {
		t.Fatalf("empty label = %q", got)
	}
}

func TestStageLabelConcurrentCallers(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, stage := range jobs.Stages {
					label := stage.Label()
					if label == "" || strings.Contains(label, "_") {
						errs <- label
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for label := range errs {
		t.Fatalf("unexpected label %q", label)
	}
}

func TestQualityTier(t *testing.T) {
	if jobs.QualityDraft.Multiplier() != 0.5 || jobs.QualityUltra.Multiplier() != 2.5 {
		t.Fatal("unexpected multipliers")
	}
	if jobs.QualityTier("bogus").Multiplier() != 1.0 {
		t.Fatal("unknown tier should default to 1.0")
	}
	if !jobs.QualityPremium.TwoPass() || jobs.QualityHigh.TwoPass() {
		t.Fatal("unexpected two-pass classification")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := 4.5
	started := time.Now()
	job := &jobs.RenderJob{
		ID:        "c",
		Scenes:    []jobs.Scene{{Text: "hi", AvatarID: "anna", TargetDuration: &d}},
		Error:     &jobs.JobError{Kind: services.KindCollaborator, Message: "boom"},
		StartedAt: &started,
	}
	cp := job.Clone()
	*cp.Scenes[0].TargetDuration = 9
	cp.Scenes[0].Text = "changed"
	cp.Error.Message = "changed"
	if *job.Scenes[0].TargetDuration != 4.5 || job.Scenes[0].Text != "hi" || job.Error.Message != "boom" {
		t.Fatalf("clone shares state with original: %+v", job)
	}
	if (*jobs.RenderJob)(nil).Clone() != nil {
		t.Fatal("nil clone should be nil")
	}
}
