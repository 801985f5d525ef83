package encoder

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProgressEvent is one progress observation for a running invocation.
// Percent covers the whole invocation, including every pass.
type ProgressEvent struct {
	Stage        string
	Percent      float64
	CurrentFrame int64
	TotalFrames  int64
	ETASeconds   float64
}

// marker is what a single output line tells us.
type marker struct {
	seconds  float64
	hasTime  bool
	frame    int64
	hasFrame bool
	end      bool
}

// parseLine understands the key=value lines written by -progress as well as
// the classic "frame= ... time=HH:MM:SS.xx" stats line.
func parseLine(line string) (marker, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return marker{}, false
	}
	if key, value, ok := strings.Cut(line, "="); ok && !strings.Contains(key, " ") {
		value = strings.TrimSpace(value)
		switch key {
		case "out_time_us":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				return marker{}, false
			}
			return marker{seconds: float64(us) / 1e6, hasTime: true}, true
		case "out_time":
			secs, ok := parseClock(value)
			if !ok {
				return marker{}, false
			}
			return marker{seconds: secs, hasTime: true}, true
		case "frame":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				return marker{frame: n, hasFrame: true}, true
			}
		case "progress":
			if value == "end" {
				return marker{end: true}, true
			}
			return marker{}, false
		}
	}
	idx := strings.Index(line, "time=")
	if idx < 0 {
		return marker{}, false
	}
	m := marker{}
	rest := line[idx+len("time="):]
	if sp := strings.IndexByte(rest, ' '); sp >= 0 {
		rest = rest[:sp]
	}
	secs, ok := parseClock(rest)
	if !ok {
		return marker{}, false
	}
	m.seconds, m.hasTime = secs, true
	if f := strings.Index(line, "frame="); f >= 0 {
		fields := strings.Fields(line[f+len("frame="):])
		if len(fields) > 0 {
			if n, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
				m.frame, m.hasFrame = n, true
			}
		}
	}
	return m, true
}

// parseClock parses HH:MM:SS(.fraction). Negative clocks appear before the
// first frame and are treated as zero.
func parseClock(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, false
	}
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	if negative {
		return 0, true
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

// tracker converts markers into invocation-wide progress events. Each pass
// owns an equal share of 0-100.
type tracker struct {
	mu          sync.Mutex
	stage       string
	duration    float64
	fps         int
	passStart   float64
	passSpan    float64
	started     time.Time
	now         func() time.Time
	last        ProgressEvent
	emitted     bool
	lastEmitted float64
	emit        func(ProgressEvent)
}

func newTracker(stage string, duration float64, fps int, emit func(ProgressEvent), now func() time.Time) *tracker {
	if now == nil {
		now = time.Now
	}
	t := &tracker{stage: stage, duration: duration, fps: fps, emit: emit, now: now, passSpan: 100}
	t.started = now()
	t.last = ProgressEvent{Stage: stage, TotalFrames: t.totalFrames()}
	return t
}

func (t *tracker) totalFrames() int64 {
	if t.duration <= 0 || t.fps <= 0 {
		return 0
	}
	return int64(math.Round(t.duration * float64(t.fps)))
}

// beginPass moves the tracker onto pass index of count.
func (t *tracker) beginPass(stage string, index, count int) {
	if count < 1 {
		count = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.passSpan = 100 / float64(count)
	t.passStart = t.passSpan * float64(index)
	t.last.Stage = stage
	t.last.CurrentFrame = 0
	t.last.Percent = math.Max(t.last.Percent, t.passStart)
	t.emitLocked(true)
}

func (t *tracker) observe(line string) {
	m, ok := parseLine(line)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.hasFrame {
		t.last.CurrentFrame = m.frame
	}
	switch {
	case m.end:
		t.setFraction(1)
	case m.hasTime && t.duration > 0:
		t.setFraction(m.seconds / t.duration)
	case m.hasFrame && t.totalFrames() > 0:
		t.setFraction(float64(m.frame) / float64(t.totalFrames()))
	}
	t.emitLocked(false)
}

func (t *tracker) setFraction(fraction float64) {
	fraction = math.Max(0, math.Min(1, fraction))
	percent := t.passStart + fraction*t.passSpan
	if percent < t.last.Percent {
		return
	}
	t.last.Percent = math.Round(percent*10) / 10
	elapsed := t.now().Sub(t.started).Seconds()
	if t.last.Percent > 0 && t.last.Percent < 100 && elapsed > 0 {
		t.last.ETASeconds = math.Round(elapsed*(100-t.last.Percent)/t.last.Percent*10) / 10
	} else if t.last.Percent >= 100 {
		t.last.ETASeconds = 0
	}
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.passStart, t.passSpan = 0, 100
	t.setFraction(1)
	t.emitLocked(false)
}

// tick re-emits the latest observation so slow encodes still report.
func (t *tracker) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(true)
}

func (t *tracker) emitLocked(force bool) {
	if t.emit == nil {
		return
	}
	if !force && t.emitted && t.last.Percent == t.lastEmitted {
		return
	}
	t.emitted = true
	t.lastEmitted = t.last.Percent
	t.emit(t.last)
}

func (t *tracker) snapshot() ProgressEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
