package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"reelforge/internal/config"
	"reelforge/internal/services/httpapi"
)

const (
	defaultMaxRetries     = 3
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultAttemptTimeout = 5 * time.Minute
)

// RetryPolicy bounds how collaborator calls are retried. Delays start at
// BaseDelay and double up to MaxDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// DefaultRetryPolicy retries three times starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
		Timeout:    defaultAttemptTimeout,
	}
}

// RetryPolicyFromConfig builds a policy from the retry section. The attempt
// timeout comes from the collaborator configuration.
func RetryPolicyFromConfig(cfg config.Retry, attemptTimeout time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay(),
		MaxDelay:   cfg.MaxDelay(),
		Timeout:    attemptTimeout,
	}.normalized()
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultAttemptTimeout
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	p = p.normalized()
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxDelay,
	}
}

// retryNotice describes one scheduled retry.
type retryNotice struct {
	Retry      int
	MaxRetries int
	Delay      time.Duration
	Err        error
}

// retry runs call until it succeeds, fails permanently or exhausts the
// policy. Errors the collaborator client marks as non-retryable stop at once.
// notify runs before every wait.
func retry[T any](ctx context.Context, policy RetryPolicy, call func(context.Context) (T, error), notify func(retryNotice)) (T, error) {
	policy = policy.normalized()
	retries := 0
	operation := func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
		result, err := call(attemptCtx)
		if err != nil && !httpapi.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			retries++
			if notify != nil {
				notify(retryNotice{Retry: retries, MaxRetries: policy.MaxRetries, Delay: next, Err: err})
			}
		}),
	)
}
