package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookwire/internal/audit"
	"bookwire/internal/dedup"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/mailer"
	"bookwire/internal/notification"
	apperrors "bookwire/pkg/errors"
	"bookwire/pkg/logging"
	"bookwire/pkg/metrics"
)

// Consumer processes batches of status-change events and delivers email
// notifications. Each record succeeds or fails on its own merit; one bad
// record never poisons its batch mates.
type Consumer struct {
	codec  *event.Codec
	mapper *notification.Mapper
	sender mailer.Sender
	guard  dedup.Guard
	traces audit.Store
	from   string
	logger logger.Logger
}

func New(
	codec *event.Codec,
	mapper *notification.Mapper,
	sender mailer.Sender,
	guard dedup.Guard,
	traces audit.Store,
	fromEmail string,
	log logger.Logger,
) *Consumer {
	if guard == nil {
		guard = dedup.NopGuard{}
	}
	if traces == nil {
		traces = audit.NopStore{}
	}
	return &Consumer{
		codec:  codec,
		mapper: mapper,
		sender: sender,
		guard:  guard,
		traces: traces,
		from:   fromEmail,
		logger: log,
	}
}

// HandleBatch processes every record in the batch and reports which ones
// should be redelivered. It never returns an error: a batch-level error
// would force redelivery of already-processed records.
func (c *Consumer) HandleBatch(ctx context.Context, records []Record) BatchResult {
	result := BatchResult{
		TotalRecords: len(records),
		ItemFailures: []ItemFailure{},
		Errors:       []string{},
	}

	for _, rec := range records {
		recCtx := logging.WithMessageID(ctx, rec.ID)
		res := c.processRecord(recCtx, rec)
		result.Results = append(result.Results, res)
		metrics.BatchRecordsTotal.WithLabelValues(res.Outcome.String()).Inc()

		switch res.Outcome {
		case OutcomeAck:
			result.SuccessfullyProcessed++
		case OutcomeRetry:
			result.Failed++
			result.ItemFailures = append(result.ItemFailures, ItemFailure{ItemIdentifier: rec.ID})
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, res.Err))
		case OutcomePermanent:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, res.Err))
		}
	}

	metrics.BatchesTotal.Inc()
	c.logger.InfowCtx(ctx, "batch processed",
		"total", result.TotalRecords,
		"succeeded", result.SuccessfullyProcessed,
		"failed", result.Failed,
		"retryable", len(result.ItemFailures),
	)
	return result
}

func (c *Consumer) processRecord(ctx context.Context, rec Record) (res RecordResult) {
	res = RecordResult{ID: rec.ID}

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			c.logger.ErrorwCtx(ctx, "panic while processing record", "error", err)
			res.Outcome = OutcomeRetry
			res.Err = err
			c.trace(ctx, rec, "", "", res.Stage, audit.LevelError, err.Error())
		}
	}()

	body := unwrapBody(rec.Body)

	res.Stage = audit.StageValidate
	evt, err := c.codec.Deserialize(body)
	if err != nil {
		return c.fail(ctx, rec, res, "", "", err)
	}
	ctx = logging.WithEventID(ctx, evt.EventID)
	ctx = logging.WithBookID(ctx, evt.Data.BookID)

	res.Stage = audit.StageMap
	req, err := c.mapper.Map(evt)
	if err != nil {
		return c.fail(ctx, rec, res, evt.EventID, evt.Data.BookID, err)
	}
	if req == nil {
		c.logger.DebugwCtx(ctx, "transition does not notify, record acknowledged",
			"new_status", evt.Data.NewStatus)
		metrics.NotificationsSuppressedTotal.Inc()
		res.Outcome = OutcomeAck
		c.trace(ctx, rec, evt.EventID, evt.Data.BookID, res.Stage, audit.LevelInfo, "no notification for transition")
		return res
	}

	if !c.guard.FirstDelivery(ctx, evt.EventID) {
		c.logger.InfowCtx(ctx, "duplicate delivery suppressed")
		metrics.NotificationsSuppressedTotal.Inc()
		res.Outcome = OutcomeAck
		c.trace(ctx, rec, evt.EventID, evt.Data.BookID, res.Stage, audit.LevelInfo, "duplicate delivery")
		return res
	}

	res.Stage = audit.StageRender
	content, err := notification.GenerateEmailContent(req.Type, req.Variables)
	if err != nil {
		return c.fail(ctx, rec, res, evt.EventID, evt.Data.BookID, err)
	}

	res.Stage = audit.StageSend
	msg := mailer.Message{
		From:     c.from,
		To:       []string{req.RecipientEmail},
		CC:       req.CCEmails,
		Subject:  content.Subject,
		HTMLBody: content.HTMLBody,
		TextBody: content.TextBody,
	}
	start := time.Now()
	_, err = c.sender.Send(ctx, msg)
	if err != nil {
		metrics.ObserveEmailSendDuration(time.Since(start), "error")
		return c.fail(ctx, rec, res, evt.EventID, evt.Data.BookID, err)
	}
	metrics.ObserveEmailSendDuration(time.Since(start), "ok")

	metrics.NotificationsSentTotal.WithLabelValues(string(req.Type)).Inc()
	c.logger.InfowCtx(ctx, "notification sent",
		"notification_type", req.Type,
		"recipient", req.RecipientEmail,
		"cc_count", len(req.CCEmails),
	)
	res.Outcome = OutcomeAck
	c.trace(ctx, rec, evt.EventID, evt.Data.BookID, res.Stage, audit.LevelInfo, "notification sent")
	return res
}

func (c *Consumer) fail(ctx context.Context, rec Record, res RecordResult, eventID, bookID string, err error) RecordResult {
	res.Err = err
	if apperrors.IsPermanent(err) {
		res.Outcome = OutcomePermanent
		c.logger.ErrorwCtx(ctx, "record failed permanently",
			"stage", res.Stage, "error", err, "receive_count", rec.ReceiveCount)
	} else {
		res.Outcome = OutcomeRetry
		c.logger.WarnwCtx(ctx, "record failed, will be redelivered",
			"stage", res.Stage, "error", err, "receive_count", rec.ReceiveCount)
	}
	c.trace(ctx, rec, eventID, bookID, res.Stage, audit.LevelError, err.Error())
	return res
}

// trace writes a processing breadcrumb used later for failure correlation.
// Audit failures are logged and swallowed; tracing must never fail a record.
func (c *Consumer) trace(ctx context.Context, rec Record, eventID, bookID, stage, level, detail string) {
	entry := audit.Entry{
		MessageID:    rec.ID,
		EventID:      eventID,
		BookID:       bookID,
		Stage:        stage,
		Level:        level,
		Detail:       detail,
		ReceiveCount: rec.ReceiveCount,
	}
	if err := c.traces.Record(ctx, entry); err != nil {
		c.logger.WarnwCtx(ctx, "failed to record processing trace", "error", err)
	}
}

// transportEnvelope is the wrapper some upstream relays put around the event
// payload. The event itself travels as an embedded JSON string.
type transportEnvelope struct {
	Message string `json:"Message"`
}

func unwrapBody(raw []byte) []byte {
	var env transportEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return []byte(env.Message)
	}
	return raw
}
