package mailer

import (
	"context"

	"golang.org/x/time/rate"

	"bookwire/internal/config"
	apperrors "bookwire/pkg/errors"
)

// RateLimitedSender smooths bursts toward the SMTP relay. It waits for a
// token rather than rejecting, so a full batch still goes out, just paced.
type RateLimitedSender struct {
	next    Sender
	limiter *rate.Limiter
}

func NewRateLimitedSender(next Sender, cfg config.RateLimitConfig) *RateLimitedSender {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedSender{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
	}
}

func (s *RateLimitedSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", apperrors.ErrTimeout.WithCause(err)
	}
	return s.next.Send(ctx, msg)
}
