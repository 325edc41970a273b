package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bookwire/internal/constants"
	"bookwire/internal/consumer"
	"bookwire/internal/logger"
	apperrors "bookwire/pkg/errors"
	"bookwire/pkg/metrics"
)

// RedeliveryRouter decides what happens to a failed record: transient
// failures go back onto the input topic with an incremented receive count,
// exhausted or permanent ones are parked on the DLQ with failure metadata.
type RedeliveryRouter struct {
	producer        Producer
	inputTopic      string
	dlqTopic        string
	maxReceiveCount int
	logger          logger.Logger
}

func NewRedeliveryRouter(producer Producer, inputTopic, dlqTopic string, maxReceiveCount int, log logger.Logger) *RedeliveryRouter {
	if maxReceiveCount <= 0 {
		maxReceiveCount = constants.DefaultMaxReceiveCount
	}
	return &RedeliveryRouter{
		producer:        producer,
		inputTopic:      inputTopic,
		dlqTopic:        dlqTopic,
		maxReceiveCount: maxReceiveCount,
		logger:          log,
	}
}

// Route dispatches one failed record. Ack outcomes are rejected; callers
// route only failures.
func (r *RedeliveryRouter) Route(ctx context.Context, rec consumer.Record, res consumer.RecordResult) error {
	switch res.Outcome {
	case consumer.OutcomePermanent:
		return r.sendToDLQ(ctx, rec, res, "permanent_failure")
	case consumer.OutcomeRetry:
		if rec.ReceiveCount >= r.maxReceiveCount {
			return r.sendToDLQ(ctx, rec, res, "max_receives_exceeded")
		}
		return r.redeliver(ctx, rec)
	default:
		return fmt.Errorf("record %s has outcome %s, nothing to route", rec.ID, res.Outcome)
	}
}

func (r *RedeliveryRouter) redeliver(ctx context.Context, rec consumer.Record) error {
	headers := copyAttrs(rec.Attributes)
	headers[constants.HeaderMessageID] = rec.ID
	headers[constants.HeaderReceiveCount] = strconv.Itoa(rec.ReceiveCount + 1)

	err := r.producer.Publish(ctx, OutboundMessage{
		Topic:   r.inputTopic,
		Key:     rec.ID,
		Value:   rec.Body,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to republish record %s: %w", rec.ID, err)
	}

	r.logger.InfowCtx(ctx, "record scheduled for redelivery",
		"receive_count", rec.ReceiveCount+1,
		"max_receive_count", r.maxReceiveCount,
	)
	return nil
}

func (r *RedeliveryRouter) sendToDLQ(ctx context.Context, rec consumer.Record, res consumer.RecordResult, reason string) error {
	headers := copyAttrs(rec.Attributes)
	headers[constants.HeaderMessageID] = rec.ID
	headers[constants.HeaderReceiveCount] = strconv.Itoa(rec.ReceiveCount)
	headers[constants.HeaderFailureReason] = errMessage(res.Err)
	headers[constants.HeaderFailureStage] = res.Stage
	headers[constants.HeaderFailureCode] = apperrors.Code(res.Err)
	headers[constants.HeaderSourceTopic] = r.inputTopic
	headers[constants.HeaderFailedAt] = time.Now().UTC().Format(time.RFC3339)

	err := r.producer.Publish(ctx, OutboundMessage{
		Topic:   r.dlqTopic,
		Key:     rec.ID,
		Value:   rec.Body,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter record %s: %w", rec.ID, err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(reason).Inc()
	r.logger.WarnwCtx(ctx, "record sent to dead letter topic",
		"dlq_topic", r.dlqTopic,
		"reason", reason,
		"stage", res.Stage,
		"receive_count", rec.ReceiveCount,
		"error", res.Err,
	)
	return nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+7)
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > constants.DescriptionMaxLen {
		msg = msg[:constants.DescriptionMaxLen]
	}
	return msg
}
