package encoder_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"reelforge/internal/catalog"
	"reelforge/internal/composition"
	"reelforge/internal/encoder"
	"reelforge/internal/services"
)

type stubExecutor struct {
	mu    sync.Mutex
	calls [][]string
	lines [][]string
	errs  []error
	block bool
}

func (s *stubExecutor) Run(ctx context.Context, _ string, args []string, onLine func(string)) error {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, append([]string(nil), args...))
	var lines []string
	if idx < len(s.lines) {
		lines = s.lines[idx]
	}
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	s.mu.Unlock()

	for _, line := range lines {
		onLine(line)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func request(t *testing.T, tier catalog.Tier, twoPass bool) encoder.Request {
	t.Helper()
	params, err := catalog.Resolve(catalog.Request{Codec: catalog.CodecH264, Tier: tier, TwoPass: twoPass})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return encoder.Request{
		Inputs:      []composition.MediaInput{{Type: composition.InputVideo, Source: "scene-0.mp4", Duration: 10}},
		FilterGraph: "[0:v]null[final_video];[0:a]anull[final_audio]",
		Output:      composition.OutputSpec{Width: 1920, Height: 1080, FPS: 30, Container: "mp4", TwoPass: twoPass},
		Params:      params,
		OutputPath:  "/tmp/out.mp4",
		Duration:    10,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []encoder.ProgressEvent
}

func (r *recorder) add(e encoder.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []encoder.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]encoder.ProgressEvent(nil), r.events...)
}

func TestStartReportsProgressToCompletion(t *testing.T) {
	exec := &stubExecutor{lines: [][]string{{"out_time_us=2500000", "out_time_us=5000000", "out_time_us=10000000", "progress=end"}}}
	mon, err := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	inv, err := mon.Start(context.Background(), request(t, catalog.TierFHD, false), rec.add)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := inv.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.Passes != 1 || result.OutputPath != "/tmp/out.mp4" {
		t.Fatalf("unexpected result %+v", result)
	}
	events := rec.all()
	if len(events) == 0 || events[len(events)-1].Percent != 100 {
		t.Fatalf("expected final 100%% event, got %+v", events)
	}
	var percents []float64
	for _, e := range events {
		percents = append(percents, e.Percent)
	}
	if !slices.IsSorted(percents) {
		t.Fatalf("progress not monotonic: %v", percents)
	}
	if !slices.Contains(percents, 25) || !slices.Contains(percents, 50) {
		t.Fatalf("missing intermediate progress: %v", percents)
	}
}

func TestTwoPassRunsBothPasses(t *testing.T) {
	exec := &stubExecutor{lines: [][]string{{"out_time_us=5000000"}, {"out_time_us=5000000"}}}
	mon, _ := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	rec := &recorder{}
	inv, err := mon.Start(context.Background(), request(t, catalog.TierFHD, true), rec.add)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := inv.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.Passes != 2 || exec.callCount() != 2 {
		t.Fatalf("expected two passes, got result %+v and %d calls", result, exec.callCount())
	}
	var sawPass1, sawPass2 bool
	for _, e := range rec.all() {
		switch e.Stage {
		case "pass1":
			sawPass1 = true
			if e.Percent > 50 {
				t.Fatalf("pass1 exceeded its half: %+v", e)
			}
		case "pass2":
			sawPass2 = true
			if e.Percent < 50 {
				t.Fatalf("pass2 below its half: %+v", e)
			}
		}
	}
	if !sawPass1 || !sawPass2 {
		t.Fatalf("missing pass events: %+v", rec.all())
	}
	if !slices.Contains(exec.calls[0], "-pass") || !slices.Contains(exec.calls[0], os.DevNull) {
		t.Fatalf("first pass args unexpected: %v", exec.calls[0])
	}
}

func TestNonZeroExitIsEncoderProcessError(t *testing.T) {
	exitErr := &encoder.ExitError{ExitCode: 1, Stderr: "Invalid data found when processing input", Err: errors.New("exit status 1")}
	exec := &stubExecutor{errs: []error{exitErr}}
	mon, _ := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	inv, err := mon.Start(context.Background(), request(t, catalog.TierHD, false), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = inv.Wait()
	if !errors.Is(err, services.ErrEncoderProcess) {
		t.Fatalf("expected encoder process error, got %v", err)
	}
	if services.KindOf(err) != services.KindEncoderProcess {
		t.Fatalf("kind = %s", services.KindOf(err))
	}
	if got := encoder.Stderr(err); !strings.Contains(got, "Invalid data") {
		t.Fatalf("stderr not carried: %q", got)
	}
}

func TestCancelStopsInvocation(t *testing.T) {
	exec := &stubExecutor{block: true}
	mon, _ := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	inv, err := mon.Start(context.Background(), request(t, catalog.TierHD, false), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return exec.callCount() == 1 })
	inv.Cancel()
	_, err = inv.Wait()
	if !services.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if mon.Live() != 0 {
		t.Fatalf("live invocations = %d after cancel", mon.Live())
	}
}

func TestShutdownCancelsLiveInvocations(t *testing.T) {
	exec := &stubExecutor{block: true}
	mon, _ := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	var invs []*encoder.Invocation
	for i := 0; i < 3; i++ {
		inv, err := mon.Start(context.Background(), request(t, catalog.TierSD, false), nil)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		invs = append(invs, inv)
	}
	mon.Shutdown()
	for i, inv := range invs {
		select {
		case <-inv.Done():
		default:
			t.Fatalf("invocation %d still running after Shutdown", i)
		}
	}
	if _, err := mon.Start(context.Background(), request(t, catalog.TierSD, false), nil); err == nil {
		t.Fatalf("expected Start after Shutdown to fail")
	}
}

func TestProgressHeartbeatWithoutOutput(t *testing.T) {
	exec := &stubExecutor{block: true}
	mon, _ := encoder.New("ffmpeg", encoder.WithExecutor(exec), encoder.WithProgressInterval(5*time.Millisecond))
	rec := &recorder{}
	inv, err := mon.Start(context.Background(), request(t, catalog.TierSD, false), rec.add)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return len(rec.all()) >= 3 })
	inv.Cancel()
}

func TestThumbnailAndFilter(t *testing.T) {
	exec := &stubExecutor{}
	mon, _ := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	if err := mon.Thumbnail(context.Background(), "final.mp4", "thumb.jpg", 1); err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	params, _ := catalog.Resolve(catalog.Request{Codec: catalog.CodecH264, Tier: catalog.TierHD})
	_, err := mon.Filter(context.Background(), encoder.FilterRequest{
		Input:      "final.mp4",
		OutputPath: "denoised.mp4",
		Chain:      "hqdn3d=4:3:0:0",
		Params:     params,
		Duration:   5,
	}, nil)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if exec.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", exec.callCount())
	}
	if got := exec.calls[0]; got[len(got)-1] != "thumb.jpg" || !slices.Contains(got, "-frames:v") {
		t.Fatalf("thumbnail args = %v", got)
	}
	if got := exec.calls[1]; !slices.Contains(got, "-vf") || !slices.Contains(got, "copy") {
		t.Fatalf("filter args = %v", got)
	}
	if err := mon.Thumbnail(context.Background(), "", "thumb.jpg", 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := encoder.New("  "); err == nil {
		t.Fatalf("expected error for empty binary")
	}
}
