package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present, 0o755)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" || !results[2].Optional {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}
}

func TestCheckEncoderResolvesFromPath(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	writeStub(t, stub, 0o755)
	t.Setenv("PATH", binDir)

	status := CheckEncoder("")
	if !status.Available {
		t.Fatalf("expected encoder on PATH, got detail %q", status.Detail)
	}
	if status.Command != stub {
		t.Fatalf("expected resolved command %q, got %q", stub, status.Command)
	}
}

func TestCheckEncoderRejectsNonExecutablePath(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "encoder")
	writeStub(t, stub, 0o644)

	status := CheckEncoder(stub)
	if status.Available {
		t.Fatal("expected non-executable encoder to be unavailable")
	}
	if status.Detail == "" {
		t.Fatal("expected detail for non-executable encoder")
	}
}

func TestCheckEncoderNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckEncoder("ffmpeg")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected missing encoder, got %#v", status)
	}
}
