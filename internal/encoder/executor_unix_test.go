//go:build unix

package encoder

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return path
}

func TestCommandExecutorCapturesStderrTail(t *testing.T) {
	sh := requireShell(t)
	var lines []string
	err := commandExecutor{killGrace: 100 * time.Millisecond}.Run(context.Background(), sh,
		[]string{"-c", "echo out_time_us=1000000; echo 'first problem' >&2; echo 'Conversion failed!' >&2; exit 3"},
		func(line string) { lines = append(lines, line) })
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", exitErr.ExitCode)
	}
	if !strings.Contains(exitErr.Stderr, "first problem") || !strings.HasSuffix(exitErr.Error(), "Conversion failed!") {
		t.Fatalf("stderr tail = %q, error = %q", exitErr.Stderr, exitErr.Error())
	}
	if len(lines) != 3 {
		t.Fatalf("forwarded lines = %v", lines)
	}
}

func TestCommandExecutorKeepsFullStderr(t *testing.T) {
	sh := requireShell(t)
	err := commandExecutor{killGrace: 100 * time.Millisecond}.Run(context.Background(), sh,
		[]string{"-c", "i=1; while [ $i -le 200 ]; do echo \"warning $i\" >&2; i=$((i+1)); done; exit 1"}, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	lines := strings.Split(exitErr.Stderr, "\n")
	if len(lines) != 200 || lines[0] != "warning 1" || lines[199] != "warning 200" {
		t.Fatalf("captured %d stderr lines, first %q", len(lines), lines[0])
	}
}

func TestStderrCaptureDropsOldestPastLimit(t *testing.T) {
	c := newStderrCapture(20)
	for _, line := range []string{"aaaaaaaa", "bbbbbbbb", "", "cccccccc"} {
		c.add(line)
	}
	if got := c.String(); got != "[1 earlier stderr lines omitted]\nbbbbbbbb\ncccccccc" {
		t.Fatalf("capture = %q", got)
	}
}

func TestCommandExecutorKillsGroupIgnoringTerm(t *testing.T) {
	sh := requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- commandExecutor{killGrace: 100 * time.Millisecond}.Run(ctx, sh,
			[]string{"-c", "trap '' TERM; sleep 30 & wait"}, nil)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("process group survived cancellation")
	}
}
