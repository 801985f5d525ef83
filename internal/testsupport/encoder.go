package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reelforge/internal/encoder"
)

// EncoderExecutor stands in for the encoder binary. Every successful run
// writes a small artifact to its output path (the last argument) and reports
// progress on the way.
type EncoderExecutor struct {
	// ExitCode makes runs whose arguments contain FailOn exit unsuccessfully.
	ExitCode int
	FailOn   string
	Stderr   string
	// Block makes every run wait for cancellation.
	Block   bool
	Started chan struct{}

	mu   sync.Mutex
	runs [][]string
}

var _ encoder.Executor = (*EncoderExecutor)(nil)

func (e *EncoderExecutor) Run(ctx context.Context, _ string, args []string, onLine func(string)) error {
	e.mu.Lock()
	e.runs = append(e.runs, append([]string(nil), args...))
	e.mu.Unlock()
	if e.Started != nil {
		select {
		case e.Started <- struct{}{}:
		default:
		}
	}
	for _, line := range []string{"out_time_us=1000000", "frame=30", "progress=continue"} {
		onLine(line)
	}
	if e.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	if e.ExitCode != 0 && (e.FailOn == "" || strings.Contains(strings.Join(args, " "), e.FailOn)) {
		return &encoder.ExitError{ExitCode: e.ExitCode, Stderr: e.Stderr}
	}
	if len(args) > 0 {
		out := args[len(args)-1]
		if out != os.DevNull {
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(strings.Repeat("frame", 4096)), 0o644); err != nil {
				return err
			}
		}
	}
	onLine("progress=end")
	return nil
}

// Runs returns a copy of every argument list seen so far.
func (e *EncoderExecutor) Runs() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.runs))
	copy(out, e.runs)
	return out
}

// NewMonitor returns an encoder monitor backed by exec.
func NewMonitor(t testing.TB, exec encoder.Executor) *encoder.Monitor {
	t.Helper()

	monitor, err := encoder.New("ffmpeg", encoder.WithExecutor(exec))
	if err != nil {
		t.Fatalf("encoder.New: %v", err)
	}
	t.Cleanup(monitor.Shutdown)
	return monitor
}
