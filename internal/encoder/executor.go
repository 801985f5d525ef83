package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// ExitError reports a process that ran but exited unsuccessfully.
type ExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	tail := lastLine(e.Stderr)
	if tail == "" {
		return fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("exit status %d: %s", e.ExitCode, tail)
}

func (e *ExitError) Unwrap() error { return e.Err }

// maxStderrBytes bounds the stderr kept for the processing log. ffmpeg runs
// with -hide_banner and -nostats, so only a pathological run reaches it; the
// oldest lines are dropped first.
const maxStderrBytes = 256 << 10

type commandExecutor struct {
	killGrace time.Duration
}

func (c commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	configureProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateGroup(cmd) }
	cmd.WaitDelay = c.killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	exited := make(chan struct{})
	defer close(exited)
	go c.escalate(ctx, cmd, exited)

	tail := newStderrCapture(maxStderrBytes)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var scanErr error
	var once sync.Once

	forward := func(line string) {
		if onLine == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onLine(line)
	}

	scan := func(r io.Reader, keep bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if keep {
				tail.add(line)
			}
			forward(line)
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout, false)
	go scan(stderr, true)
	wg.Wait()

	waitErr := cmd.Wait()
	// The leader may exit before children that inherited the group.
	killGroup(cmd)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{ExitCode: exitErr.ExitCode(), Stderr: tail.String(), Err: waitErr}
		}
		return fmt.Errorf("wait command: %w", waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return nil
}

// escalate kills the whole group when it ignores SIGTERM for longer than the
// grace period. Children holding the output pipes would otherwise block the
// scanners forever.
func (c commandExecutor) escalate(ctx context.Context, cmd *exec.Cmd, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}
	timer := time.NewTimer(c.killGrace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		killGroup(cmd)
	}
}

// stderrCapture keeps every non-blank stderr line up to limit bytes.
type stderrCapture struct {
	mu      sync.Mutex
	limit   int
	size    int
	dropped int
	lines   []string
}

func newStderrCapture(limit int) *stderrCapture {
	return &stderrCapture{limit: limit}
}

func (c *stderrCapture) add(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	c.size += len(line) + 1
	for c.size > c.limit && len(c.lines) > 1 {
		c.size -= len(c.lines[0]) + 1
		c.lines = c.lines[1:]
		c.dropped++
	}
}

func (c *stderrCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := strings.Join(c.lines, "\n")
	if c.dropped > 0 {
		text = fmt.Sprintf("[%d earlier stderr lines omitted]\n%s", c.dropped, text)
	}
	return text
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}
