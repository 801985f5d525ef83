package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelforge/internal/services"
	"reelforge/internal/services/httpapi"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Timeout: time.Second}
}

func TestRetryPolicyDelayDoubles(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}
	p.MaxDelay = 3 * time.Second
	if got := p.Delay(5); got != 3*time.Second {
		t.Fatalf("Delay(5) = %s, want capped 3s", got)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var notices []retryNotice
	got, err := retry(context.Background(), fastPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", services.Wrap(services.ErrCollaborator, "synthesis", "call", "", nil)
		}
		return "ok", nil
	}, func(n retryNotice) { notices = append(notices, n) })
	if err != nil || got != "ok" {
		t.Fatalf("retry = %q, %v", got, err)
	}
	if calls != 3 || len(notices) != 2 {
		t.Fatalf("calls = %d notices = %d, want 3 and 2", calls, len(notices))
	}
	if notices[0].Retry != 1 || notices[1].Retry != 2 || notices[1].MaxRetries != 3 {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, services.Wrap(services.ErrCollaborator, "avatar", "render", "", nil)
	}, nil)
	if !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestRetryStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, &httpapi.StatusError{Service: "avatar", StatusCode: 400}
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("calls = %d err = %v, want a single attempt", calls, err)
	}
}

func TestRetryBoundsEachAttempt(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 0
	policy.Timeout = 10 * time.Millisecond
	_, err := retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, services.Wrap(services.ErrTimeout, "synthesis", "call", "", ctx.Err())
	}, nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
