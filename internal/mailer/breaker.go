package mailer

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"bookwire/internal/config"
	"bookwire/pkg/circuitbreaker"
	apperrors "bookwire/pkg/errors"
)

// BreakerSender fails fast while the SMTP relay is unhealthy. A rejected
// call is classified transient so the record is redelivered once the
// breaker closes again.
type BreakerSender struct {
	next    Sender
	breaker *circuitbreaker.Wrapper
}

func NewBreakerSender(next Sender, cfg config.CircuitBreakerConfig) *BreakerSender {
	bcfg := circuitbreaker.DefaultConfig("email-transport")
	if cfg.MaxRequests > 0 {
		bcfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		bcfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		bcfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		bcfg.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		bcfg.MinRequests = cfg.MinRequests
	}

	return &BreakerSender{
		next:    next,
		breaker: circuitbreaker.NewWrapper(bcfg),
	}
}

func (s *BreakerSender) Send(ctx context.Context, msg Message) (string, error) {
	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.next.Send(ctx, msg)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperrors.ErrThrottled.WithCause(err)
		}
		return "", err
	}

	messageID, _ := result.(string)
	return messageID, nil
}
