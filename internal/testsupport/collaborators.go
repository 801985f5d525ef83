package testsupport

import (
	"context"
	"fmt"
	"sync"

	"reelforge/internal/services"
	"reelforge/internal/services/avatar"
	"reelforge/internal/services/tts"
)

// Calls counts collaborator invocations.
type Calls struct {
	mu    sync.Mutex
	count int
}

func (c *Calls) add() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count
}

// Count returns how many calls were made.
func (c *Calls) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Synthesizer returns Duration seconds of audio per call. Fail maps a
// narration text to the number of initial attempts that fail for it.
type Synthesizer struct {
	Calls
	Duration float64
	Fail     map[string]int
	// Err is returned for failing attempts; a retryable collaborator error
	// when nil.
	Err error

	attemptsMu sync.Mutex
	attempts   map[string]int
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID string) (tts.Result, error) {
	n := s.add()
	if err := ctx.Err(); err != nil {
		return tts.Result{}, services.Wrap(services.ErrCancelled, "synthesis", "synthesize", "", err)
	}
	s.attemptsMu.Lock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[text]++
	attempt := s.attempts[text]
	s.attemptsMu.Unlock()
	if attempt <= s.Fail[text] {
		if s.Err != nil {
			return tts.Result{}, s.Err
		}
		return tts.Result{}, services.Wrap(services.ErrCollaborator, "synthesis", "synthesize", fmt.Sprintf("attempt %d failed", attempt), nil)
	}
	duration := s.Duration
	if duration <= 0 {
		duration = 5
	}
	return tts.Result{AudioURL: fmt.Sprintf("https://audio.example/%d.wav", n), DurationSeconds: duration}, nil
}

// Attempts returns how often text was synthesized.
func (s *Synthesizer) Attempts(text string) int {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	return s.attempts[text]
}

// AvatarRenderer returns one video per call. When Block is set every call
// waits for its context to end.
type AvatarRenderer struct {
	Calls
	Accuracy float64
	Err      error
	Block    bool
	// Started receives one value per call when non-nil.
	Started chan struct{}
}

var _ avatar.Renderer = (*AvatarRenderer)(nil)

func (a *AvatarRenderer) Render(ctx context.Context, req avatar.Request) (avatar.Result, error) {
	n := a.add()
	if a.Started != nil {
		select {
		case a.Started <- struct{}{}:
		default:
		}
	}
	if a.Block {
		<-ctx.Done()
		return avatar.Result{}, services.Wrap(services.ErrCancelled, "avatar", "render", "", ctx.Err())
	}
	if a.Err != nil {
		return avatar.Result{}, a.Err
	}
	accuracy := a.Accuracy
	if accuracy == 0 {
		accuracy = 0.9
	}
	return avatar.Result{
		VideoURL:        fmt.Sprintf("https://video.example/%s-%d.mp4", req.AvatarID, n),
		LipSyncAccuracy: accuracy,
	}, nil
}
