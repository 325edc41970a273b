package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "bookwire/pkg/errors"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// Do runs fn under the policy's exponential backoff. Permanent errors (per
// the pkg/errors taxonomy) abort immediately; everything else is retried
// until MaxAttempts is exhausted, then the last error is returned.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	return DoWithNotify(ctx, policy, fn, nil)
}

// DoWithNotify is Do with a per-retry callback (attempt number, error, delay
// before the next attempt).
func DoWithNotify(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	b := newBackoff(policy)
	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		if apperrors.IsPermanent(err) {
			return backoff.Permanent(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			nextDelay := NextDelay(attempt, policy)
			onRetry(attempt, err, nextDelay)
		}

		return err
	}

	return backoff.Retry(operation, b)
}
