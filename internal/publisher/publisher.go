package publisher

import (
	"context"
	"time"

	"bookwire/internal/broker"
	"bookwire/internal/constants"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/workflow"
	"bookwire/pkg/logging"
	"bookwire/pkg/metrics"
	"bookwire/pkg/retry"
)

// StatusChange describes a book status mutation to be announced.
type StatusChange struct {
	BookID         string
	Title          string
	Author         string
	PreviousStatus *workflow.BookStatus
	NewStatus      workflow.BookStatus
	ChangedBy      string
	ChangeReason   string
	Metadata       map[string]interface{}
}

// Publisher turns status changes into wire events and hands them to the
// broker with bounded retry. Silent transitions are dropped here so they
// never reach the topic at all.
type Publisher struct {
	codec    *event.Codec
	producer broker.Producer
	topic    string
	source   string
	policy   retry.Policy
	logger   logger.Logger
}

func New(codec *event.Codec, producer broker.Producer, topic, source string, log logger.Logger) *Publisher {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = constants.PublishMaxAttempts
	return &Publisher{
		codec:    codec,
		producer: producer,
		topic:    topic,
		source:   source,
		policy:   policy,
		logger:   log,
	}
}

// PublishStatusChange validates, serializes and publishes one status change.
// Transitions that carry no notification return nil without touching the
// broker. The returned error means the event did NOT reach the topic after
// all attempts; the caller decides whether the underlying write proceeds.
func (p *Publisher) PublishStatusChange(ctx context.Context, change StatusChange) error {
	if !workflow.ShouldNotify(change.PreviousStatus, change.NewStatus) {
		p.logger.DebugwCtx(ctx, "transition is silent, no event published",
			"book_id", change.BookID,
			"new_status", change.NewStatus,
		)
		return nil
	}

	notifType, _ := workflow.NotificationTypeFor(change.PreviousStatus, change.NewStatus)

	evt := event.New(p.source, event.StatusChangeData{
		BookID:         change.BookID,
		Title:          change.Title,
		Author:         change.Author,
		PreviousStatus: change.PreviousStatus,
		NewStatus:      change.NewStatus,
		ChangedBy:      change.ChangedBy,
		ChangeReason:   event.Truncate(change.ChangeReason, constants.DescriptionMaxLen),
		Metadata:       enrichMetadata(change.Metadata, notifType),
	})
	ctx = logging.WithEventID(ctx, evt.EventID)
	ctx = logging.WithBookID(ctx, change.BookID)

	body, err := p.codec.Serialize(evt)
	if err != nil {
		p.logger.ErrorwCtx(ctx, "refusing to publish invalid event", "error", err)
		return err
	}

	msg := broker.OutboundMessage{
		Topic: p.topic,
		Key:   change.BookID,
		Value: body,
		Headers: map[string]string{
			constants.HeaderMessageID: evt.EventID,
			"eventType":               evt.EventType,
			"bookId":                  change.BookID,
			"newStatus":               string(change.NewStatus),
			"source":                  evt.Source,
		},
	}

	err = retry.DoWithNotify(ctx, p.policy, func() error {
		return p.producer.Publish(ctx, msg)
	}, func(attempt int, attemptErr error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("publisher").Inc()
		p.logger.WarnwCtx(ctx, "retrying event publish",
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", attemptErr,
		)
	})
	if err != nil {
		p.logger.ErrorwCtx(ctx, "failed to publish event after retries", "error", err)
		return err
	}

	metrics.PublishedEventsTotal.WithLabelValues(string(notifType)).Inc()
	p.logger.InfowCtx(ctx, "status change event published",
		"previous_status", change.PreviousStatus,
		"new_status", change.NewStatus,
	)
	return nil
}

// enrichMetadata copies the caller metadata and adds the notification hint
// consumers may use without re-deriving the transition.
func enrichMetadata(src map[string]interface{}, notifType workflow.NotificationType) map[string]interface{} {
	meta := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		meta[k] = v
	}
	if notifType != "" {
		meta["notificationType"] = string(notifType)
	}
	return meta
}
