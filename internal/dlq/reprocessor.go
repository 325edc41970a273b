package dlq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bookwire/internal/broker"
	"bookwire/internal/constants"
	"bookwire/internal/logger"
	"bookwire/pkg/metrics"
)

// ReprocessOptions narrows a reprocessing run.
type ReprocessOptions struct {
	// DryRun reports what would happen without publishing anything.
	DryRun bool
	// MessageIDs limits the run to specific messages and overrides the
	// reprocessability check for them; empty means every eligible message.
	MessageIDs []string
	// Limit caps how many DLQ messages are examined; zero means all.
	Limit int
}

type SkipReason string

const (
	SkipNotReprocessable SkipReason = "not_reprocessable"
	SkipUnparseable      SkipReason = "unparseable"
	SkipNotSelected      SkipReason = "not_selected"
	SkipOverMaxReceives  SkipReason = "over_max_receives"
)

type ReprocessResult struct {
	Examined    int
	Reprocessed []string
	Skipped     map[string]SkipReason
	DryRun      bool
}

// Reprocessor re-injects dead-lettered messages into the input topic with a
// fresh delivery history. Messages stay on the DLQ topic; offset retention
// eventually reaps them.
type Reprocessor struct {
	reader          broker.DLQReader
	producer        broker.Producer
	analyzer        *Analyzer
	inputTopic      string
	maxReceiveCount int
	logger          logger.Logger
}

func NewReprocessor(reader broker.DLQReader, producer broker.Producer, analyzer *Analyzer, inputTopic string, maxReceiveCount int, log logger.Logger) *Reprocessor {
	return &Reprocessor{
		reader:          reader,
		producer:        producer,
		analyzer:        analyzer,
		inputTopic:      inputTopic,
		maxReceiveCount: maxReceiveCount,
		logger:          log,
	}
}

func (r *Reprocessor) Reprocess(ctx context.Context, opts ReprocessOptions) (*ReprocessResult, error) {
	messages, err := r.reader.Drain(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter topic: %w", err)
	}

	selected := make(map[string]bool, len(opts.MessageIDs))
	for _, id := range opts.MessageIDs {
		selected[id] = true
	}

	result := &ReprocessResult{
		Examined: len(messages),
		Skipped:  make(map[string]SkipReason),
		DryRun:   opts.DryRun,
	}

	for _, msg := range messages {
		if len(selected) > 0 && !selected[msg.MessageID] {
			result.Skipped[msg.MessageID] = SkipNotSelected
			continue
		}

		analysis := r.analyzer.AnalyzeMessage(ctx, msg)

		// A payload that still fails structural checks would bounce straight
		// back to the DLQ; replaying it is pure churn.
		switch analysis.ErrorType {
		case ErrorTypeInvalidFormat, ErrorTypeEventDetection, ErrorTypeInvalidEventData:
			result.Skipped[msg.MessageID] = SkipUnparseable
			metrics.DLQReprocessedTotal.WithLabelValues("skipped").Inc()
			continue
		}

		// Past the redelivery cap the pipeline has already given this payload
		// every delivery it gets; targeting it by id does not override that.
		if r.maxReceiveCount > 0 && msg.ReceiveCount > r.maxReceiveCount {
			result.Skipped[msg.MessageID] = SkipOverMaxReceives
			metrics.DLQReprocessedTotal.WithLabelValues("skipped").Inc()
			continue
		}

		if len(selected) == 0 && !analysis.IsReprocessable {
			result.Skipped[msg.MessageID] = SkipNotReprocessable
			metrics.DLQReprocessedTotal.WithLabelValues("skipped").Inc()
			continue
		}

		if opts.DryRun {
			result.Reprocessed = append(result.Reprocessed, msg.MessageID)
			continue
		}

		if err := r.republish(ctx, msg); err != nil {
			metrics.DLQReprocessedTotal.WithLabelValues("failed").Inc()
			return result, fmt.Errorf("failed to reprocess message %s: %w", msg.MessageID, err)
		}
		metrics.DLQReprocessedTotal.WithLabelValues("reprocessed").Inc()
		result.Reprocessed = append(result.Reprocessed, msg.MessageID)
	}

	r.logger.Infow("dead letter reprocessing finished",
		"examined", result.Examined,
		"reprocessed", len(result.Reprocessed),
		"skipped", len(result.Skipped),
		"dry_run", opts.DryRun,
	)
	return result, nil
}

// republish sends the original payload back to the input topic with the
// receive count reset, so it gets a full allowance of redeliveries.
func (r *Reprocessor) republish(ctx context.Context, msg broker.DLQMessage) error {
	headers := map[string]string{
		constants.HeaderMessageID:    msg.MessageID,
		constants.HeaderReceiveCount: strconv.Itoa(1),
		"reprocessed_at":             time.Now().UTC().Format(time.RFC3339),
	}
	if msg.SourceTopic != "" {
		headers["reprocessed_from"] = msg.SourceTopic
	}

	return r.producer.Publish(ctx, broker.OutboundMessage{
		Topic:   r.inputTopic,
		Key:     msg.MessageID,
		Value:   msg.Body,
		Headers: headers,
	})
}
