package logging

import (
	"strings"
	"sync"
)

// ProgressSampler thins encoder progress logging to one line per bucket of
// percent (5% by default) for each key. The pipeline keys by stage and
// encoder pass, so a second pass or the next post-processing filter starts
// logging again from zero. It is safe for concurrent use.
type ProgressSampler struct {
	step float64

	mu   sync.Mutex
	last map[string]int
}

func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, last: make(map[string]int)}
}

// ShouldLog reports whether progress for key deserves a log line. The first
// event for a key always does; after that only a higher bucket does. A
// negative percent means the total is unknown.
func (s *ProgressSampler) ShouldLog(percent float64, key string) bool {
	if s == nil {
		return true
	}
	key = strings.TrimSpace(key)
	bucket := -1
	if percent >= 0 {
		bucket = int(min(percent, 100) / s.step)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.last[key]
	if seen && bucket <= prev {
		return false
	}
	s.last[key] = bucket
	return true
}
