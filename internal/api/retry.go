package api

import (
	"context"
	"errors"
	"time"

	"dyfl-backend/internal/constants"

	"github.com/sethvargo/go-retry"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether a failed attempt is tried again.
	Retryable func(error) bool
	// Sleep waits between attempts; tests swap it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.DefaultRetryMaxAttempts,
		BaseDelay:   constants.DefaultRetryBaseDelay,
		Retryable:   IsRetryable,
		Sleep:       sleepContext,
	}
}

// IsRetryable refuses 4xx answers other than 429 and cancelled contexts.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	status := StatusOf(err)
	if status >= 400 && status < 500 && status != 429 {
		return false
	}
	return true
}

// Do runs fn up to MaxAttempts times, waiting BaseDelay * 2^(attempt-1)
// between attempts. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(base))
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		delay, stop := backoff.Next()
		if stop {
			return err
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
