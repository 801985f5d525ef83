package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

const (
	defaultProgressInterval = 2 * time.Second
	defaultKillGrace        = 5 * time.Second
)

// Option configures the monitor.
type Option func(*Monitor)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(m *Monitor) {
		if exec != nil {
			m.exec = exec
		}
	}
}

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithProgressInterval sets how often the latest progress is re-emitted.
func WithProgressInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithKillGrace sets how long a terminated process may take before SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.killGrace = d
		}
	}
}

// Monitor launches encoder processes and tracks every live invocation so none
// outlives Shutdown.
type Monitor struct {
	binary    string
	exec      Executor
	logger    *slog.Logger
	interval  time.Duration
	killGrace time.Duration

	mu     sync.Mutex
	live   map[*Invocation]struct{}
	closed bool
}

// New constructs a monitor for binary.
func New(binary string, opts ...Option) (*Monitor, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("encoder binary required")
	}
	m := &Monitor{
		binary:    binary,
		logger:    logging.NewNop(),
		interval:  defaultProgressInterval,
		killGrace: defaultKillGrace,
		live:      make(map[*Invocation]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.exec == nil {
		m.exec = commandExecutor{killGrace: m.killGrace}
	}
	return m, nil
}

// NewFromConfig builds a monitor using the encoder section of cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	base := []Option{
		WithLogger(logging.NewComponentLogger(logger, "encoder")),
		WithProgressInterval(cfg.ProgressInterval()),
		WithKillGrace(cfg.KillGrace()),
	}
	return New(cfg.EncoderBinary(), append(base, opts...)...)
}

// Result summarizes a finished invocation.
type Result struct {
	OutputPath string
	Passes     int
	Elapsed    time.Duration
}

// Invocation is one running encode.
type Invocation struct {
	cancel  context.CancelFunc
	done    chan struct{}
	tracker *tracker
	result  Result
	err     error
}

// Wait blocks until the invocation finishes.
func (i *Invocation) Wait() (Result, error) {
	<-i.done
	return i.result, i.err
}

// Done is closed once the process has exited.
func (i *Invocation) Done() <-chan struct{} { return i.done }

// Cancel signals the process and returns once it exited.
func (i *Invocation) Cancel() {
	i.cancel()
	<-i.done
}

// Progress returns the latest observation.
func (i *Invocation) Progress() ProgressEvent {
	if i.tracker == nil {
		return ProgressEvent{}
	}
	return i.tracker.snapshot()
}

type run struct {
	stage string
	args  []string
}

type launchSpec struct {
	runs     []run
	output   string
	duration float64
	fps      int
}

// Start launches the encode described by req. onProgress may be nil.
func (m *Monitor) Start(ctx context.Context, req Request, onProgress func(ProgressEvent)) (*Invocation, error) {
	spec := launchSpec{output: req.OutputPath, duration: req.Duration, fps: req.Output.FPS}
	if req.Passes() == 2 {
		for pass := 1; pass <= 2; pass++ {
			args, err := BuildArgs(req, pass)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "encoder", "build arguments", "", err)
			}
			spec.runs = append(spec.runs, run{stage: fmt.Sprintf("pass%d", pass), args: args})
		}
	} else {
		args, err := BuildArgs(req, 0)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "encoder", "build arguments", "", err)
		}
		spec.runs = []run{{stage: "encode", args: args}}
	}
	return m.launch(ctx, spec, onProgress)
}

// Filter runs a single-input filter pass and waits for it.
func (m *Monitor) Filter(ctx context.Context, req FilterRequest, onProgress func(ProgressEvent)) (Result, error) {
	args, err := BuildFilterArgs(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "encoder", "build filter arguments", "", err)
	}
	inv, err := m.launch(ctx, launchSpec{
		runs:     []run{{stage: "filter", args: args}},
		output:   req.OutputPath,
		duration: req.Duration,
		fps:      req.Output.FPS,
	}, onProgress)
	if err != nil {
		return Result{}, err
	}
	return inv.Wait()
}

// Thumbnail extracts a single frame at seconds from input into output.
func (m *Monitor) Thumbnail(ctx context.Context, input, output string, at float64) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return services.Wrap(services.ErrValidation, "encoder", "thumbnail", "input and output paths required", nil)
	}
	inv, err := m.launch(ctx, launchSpec{
		runs:   []run{{stage: "thumbnail", args: BuildThumbnailArgs(input, output, at)}},
		output: output,
	}, nil)
	if err != nil {
		return err
	}
	_, err = inv.Wait()
	return err
}

// Live reports how many invocations are running.
func (m *Monitor) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Shutdown cancels every live invocation, waits for them to exit and rejects
// new ones.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	m.closed = true
	live := make([]*Invocation, 0, len(m.live))
	for inv := range m.live {
		live = append(live, inv)
	}
	m.mu.Unlock()
	for _, inv := range live {
		inv.Cancel()
	}
}

func (m *Monitor) launch(ctx context.Context, spec launchSpec, onProgress func(ProgressEvent)) (*Invocation, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, services.Wrap(services.ErrCancelled, "encoder", "start", "monitor is shut down", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	inv := &Invocation{
		cancel:  cancel,
		done:    make(chan struct{}),
		tracker: newTracker(spec.runs[0].stage, spec.duration, spec.fps, onProgress, nil),
	}
	m.live[inv] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer close(inv.done)
		defer m.forget(inv)
		defer cancel()
		inv.result, inv.err = m.execute(runCtx, inv.tracker, spec)
	}()
	return inv, nil
}

func (m *Monitor) forget(inv *Invocation) {
	m.mu.Lock()
	delete(m.live, inv)
	m.mu.Unlock()
}

func (m *Monitor) execute(ctx context.Context, tr *tracker, spec launchSpec) (Result, error) {
	logger := logging.WithContext(ctx, m.logger)
	started := time.Now()
	for i, r := range spec.runs {
		tr.beginPass(r.stage, i, len(spec.runs))
		logger.Debug("encoder run starting",
			logging.String("encoder_stage", r.stage),
			logging.String("command", m.binary+" "+strings.Join(r.args, " ")),
		)
		if err := m.runOnce(ctx, r, tr); err != nil {
			err = classify(ctx, r.stage, err)
			if !services.IsCancellation(err) {
				logging.WarnWithContext(logger, "encoder run failed", "encoder_failed",
					logging.String("encoder_stage", r.stage),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "inspect the encoder stderr in the job log"),
				)
			}
			return Result{}, err
		}
	}
	tr.finish()
	elapsed := time.Since(started)
	logger.Debug("encoder finished",
		logging.String("output", spec.output),
		logging.Int("passes", len(spec.runs)),
		logging.Duration("elapsed", elapsed),
	)
	return Result{OutputPath: spec.output, Passes: len(spec.runs), Elapsed: elapsed}, nil
}

func (m *Monitor) runOnce(ctx context.Context, r run, tr *tracker) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				tr.tick()
			}
		}
	}()
	err := m.exec.Run(ctx, m.binary, r.args, tr.observe)
	close(stop)
	wg.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}

func classify(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "encoder", stage, "encoder cancelled", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "encoder", stage, "encoder timed out", err)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return services.Wrap(services.ErrEncoderProcess, "encoder", stage, "", err)
	}
	return services.Wrap(services.ErrEncoderProcess, "encoder", stage, "encoder failed to run", err)
}

// Stderr returns the captured stderr text carried by err, if any.
func Stderr(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return ""
}
