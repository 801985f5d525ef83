package encoder

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line    string
		ok      bool
		seconds float64
		frame   int64
		end     bool
	}{
		{line: "out_time_us=2500000", ok: true, seconds: 2.5},
		{line: "out_time=00:01:02.500000", ok: true, seconds: 62.5},
		{line: "out_time=-00:00:00.023220", ok: true, seconds: 0},
		{line: "frame=120", ok: true, frame: 120},
		{line: "frame=  120 fps= 30 q=28.0 size=     512kB time=00:00:04.00 bitrate=1048.6kbits/s speed=1.01x", ok: true, seconds: 4, frame: 120},
		{line: "progress=end", ok: true, end: true},
		{line: "progress=continue"},
		{line: "out_time=N/A"},
		{line: "out_time_us=N/A"},
		{line: "Stream mapping:"},
		{line: ""},
	}
	for _, tc := range cases {
		m, ok := parseLine(tc.line)
		if ok != tc.ok {
			t.Fatalf("parseLine(%q) ok=%v, want %v", tc.line, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if m.seconds != tc.seconds || m.frame != tc.frame || m.end != tc.end {
			t.Fatalf("parseLine(%q) = %+v", tc.line, m)
		}
	}
}

func TestTrackerSplitsPasses(t *testing.T) {
	var events []ProgressEvent
	clock := time.Unix(0, 0)
	tr := newTracker("pass1", 10, 30, func(e ProgressEvent) { events = append(events, e) }, func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	tr.beginPass("pass1", 0, 2)
	tr.observe("out_time_us=5000000")
	if got := tr.snapshot().Percent; got != 25 {
		t.Fatalf("pass1 halfway = %v, want 25", got)
	}
	tr.observe("out_time_us=10000000")
	tr.beginPass("pass2", 1, 2)
	tr.observe("out_time_us=5000000")
	if got := tr.snapshot(); got.Percent != 75 || got.Stage != "pass2" {
		t.Fatalf("pass2 halfway = %+v, want 75 in pass2", got)
	}
	tr.finish()
	if got := tr.snapshot().Percent; got != 100 {
		t.Fatalf("finish = %v, want 100", got)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Fatalf("progress decreased: %v", events)
		}
	}
}

func TestTrackerNeverRegresses(t *testing.T) {
	tr := newTracker("encode", 10, 0, nil, nil)
	tr.observe("out_time_us=6000000")
	tr.observe("out_time_us=2000000")
	if got := tr.snapshot().Percent; got != 60 {
		t.Fatalf("percent = %v, want 60", got)
	}
}

func TestTrackerUsesFramesWithoutTime(t *testing.T) {
	tr := newTracker("encode", 10, 25, nil, nil)
	tr.observe("frame=125")
	got := tr.snapshot()
	if got.Percent != 50 || got.CurrentFrame != 125 || got.TotalFrames != 250 {
		t.Fatalf("snapshot = %+v", got)
	}
}
