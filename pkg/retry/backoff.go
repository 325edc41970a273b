package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func newBackoff(policy Policy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	exp.MaxElapsedTime = policy.MaxElapsedTime
	return exp
}

// NextDelay computes the nominal delay after the given attempt, capped at the
// policy's MaxInterval. Used for logging; the actual backoff adds jitter.
func NextDelay(attempt int, policy Policy) time.Duration {
	duration := float64(policy.InitialInterval) * math.Pow(policy.Multiplier, float64(attempt))
	if duration > float64(policy.MaxInterval) {
		return policy.MaxInterval
	}
	return time.Duration(duration)
}
