package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"reelforge/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writers to disable color")
	}
}

func TestRenderDaemonStatus(t *testing.T) {
	status := api.DaemonStatus{
		Queue: api.QueueStatus{Pending: 3, Running: 2, MaxConcurrency: 2, Counts: map[string]int{"failed": 1, "queued": 3}},
		Dependencies: []api.DependencyStatus{
			{Name: "Encoder", Command: "ffmpeg", Available: false, Detail: "not found"},
		},
	}
	out := strings.Join(renderDaemonStatus(status, false), "\n")
	for _, want := range []string{
		"[ERROR] Not running",
		"[WARN] 2 of 2 busy, 3 waiting",
		"Failed:",
		"[ERROR] ffmpeg not found",
	} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "Host:") {
		t.Fatal("host line should be omitted without a sample")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
