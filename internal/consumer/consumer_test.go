package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwire/internal/config"
	"bookwire/internal/dedup"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/mailer"
	"bookwire/internal/notification"
	"bookwire/internal/workflow"
	apperrors "bookwire/pkg/errors"
)

type fakeSender struct {
	sent    []mailer.Message
	failErr error
	panic   bool
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) (string, error) {
	if f.panic {
		panic("smtp client state corrupted")
	}
	if f.failErr != nil {
		return "", f.failErr
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("<msg-%d@test>", len(f.sent)), nil
}

func newTestConsumer(sender mailer.Sender, guard dedup.Guard) *Consumer {
	codec := event.NewCodec(event.NewValidator(nil))
	mapper := notification.NewMapper(config.NotificationConfig{
		TargetEmail:     "publishing-ops@bookwire.io",
		FrontendBaseURL: "https://app.bookwire.io",
	}, notification.CCConfig{}, logger.NopLogger())
	return New(codec, mapper, sender, guard, nil, "notifications@bookwire.io", logger.NopLogger())
}

func statusPtr(s workflow.BookStatus) *workflow.BookStatus { return &s }

func eventBody(t *testing.T, bookID string, prev *workflow.BookStatus, next workflow.BookStatus) []byte {
	t.Helper()
	evt := event.New("book-workflow-service", event.StatusChangeData{
		BookID:         bookID,
		Title:          "Proofs and Refutations",
		Author:         "I. Lakatos",
		PreviousStatus: prev,
		NewStatus:      next,
		ChangedBy:      "editor-1",
	})
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return body
}

func submittedBody(t *testing.T, bookID string) []byte {
	return eventBody(t, bookID, statusPtr(workflow.StatusDraft), workflow.StatusSubmittedForEditing)
}

func record(id string, body []byte) Record {
	return Record{ID: id, Body: body, ReceiveCount: 1}
}

func TestHandleBatch(t *testing.T) {
	t.Run("all records succeed", func(t *testing.T) {
		sender := &fakeSender{}
		c := newTestConsumer(sender, nil)

		result := c.HandleBatch(context.Background(), []Record{
			record("r1", submittedBody(t, "book-1")),
			record("r2", submittedBody(t, "book-2")),
			record("r3", submittedBody(t, "book-3")),
		})

		assert.Equal(t, 3, result.TotalRecords)
		assert.Equal(t, 3, result.SuccessfullyProcessed)
		assert.Zero(t, result.Failed)
		assert.Empty(t, result.ItemFailures)
		assert.Len(t, sender.sent, 3)
	})

	t.Run("malformed record fails alone without redelivery", func(t *testing.T) {
		sender := &fakeSender{}
		c := newTestConsumer(sender, nil)

		result := c.HandleBatch(context.Background(), []Record{
			record("r1", submittedBody(t, "book-1")),
			record("r2", []byte("{not valid json")),
			record("r3", submittedBody(t, "book-3")),
		})

		assert.Equal(t, 3, result.TotalRecords)
		assert.Equal(t, 2, result.SuccessfullyProcessed)
		assert.Equal(t, 1, result.Failed)
		// Structural failures must never be redelivered.
		assert.Empty(t, result.ItemFailures)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "r2")
		assert.Len(t, sender.sent, 2)
	})

	t.Run("transient send failure requests redelivery", func(t *testing.T) {
		sender := &fakeSender{failErr: apperrors.ErrTransport.WithCause(assert.AnError)}
		c := newTestConsumer(sender, nil)

		result := c.HandleBatch(context.Background(), []Record{
			record("r1", submittedBody(t, "book-1")),
		})

		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.ItemFailures, 1)
		assert.Equal(t, "r1", result.ItemFailures[0].ItemIdentifier)
	})

	t.Run("permanent send failure is not redelivered", func(t *testing.T) {
		sender := &fakeSender{failErr: apperrors.ErrTransport.AsPermanent().WithCause(assert.AnError)}
		c := newTestConsumer(sender, nil)

		result := c.HandleBatch(context.Background(), []Record{
			record("r1", submittedBody(t, "book-1")),
		})

		assert.Equal(t, 1, result.Failed)
		assert.Empty(t, result.ItemFailures)
	})

	t.Run("silent transition is acknowledged without sending", func(t *testing.T) {
		sender := &fakeSender{}
		c := newTestConsumer(sender, nil)

		body := eventBody(t, "book-1", statusPtr(workflow.StatusSubmittedForEditing), workflow.StatusDraft)
		result := c.HandleBatch(context.Background(), []Record{record("r1", body)})

		assert.Equal(t, 1, result.SuccessfullyProcessed)
		assert.Empty(t, sender.sent)
	})

	t.Run("duplicate event id is acknowledged once", func(t *testing.T) {
		sender := &fakeSender{}
		c := newTestConsumer(sender, dedup.NewMemoryGuard())

		body := submittedBody(t, "book-1")
		result := c.HandleBatch(context.Background(), []Record{
			record("r1", body),
			record("r2", body),
		})

		assert.Equal(t, 2, result.SuccessfullyProcessed)
		assert.Len(t, sender.sent, 1)
	})

	t.Run("panic in processing is contained and retried", func(t *testing.T) {
		sender := &fakeSender{panic: true}
		c := newTestConsumer(sender, nil)

		result := c.HandleBatch(context.Background(), []Record{
			record("r1", submittedBody(t, "book-1")),
		})

		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.ItemFailures, 1)
		assert.Equal(t, "r1", result.ItemFailures[0].ItemIdentifier)
	})

	t.Run("transport wrapped payload is unwrapped", func(t *testing.T) {
		sender := &fakeSender{}
		c := newTestConsumer(sender, nil)

		inner := submittedBody(t, "book-1")
		wrapped, err := json.Marshal(map[string]string{"Message": string(inner)})
		require.NoError(t, err)

		result := c.HandleBatch(context.Background(), []Record{record("r1", wrapped)})

		assert.Equal(t, 1, result.SuccessfullyProcessed)
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0].Subject, "Proofs and Refutations")
	})

	t.Run("empty batch reports zero everything", func(t *testing.T) {
		sender := &fakeSender{}
		c := newTestConsumer(sender, nil)

		result := c.HandleBatch(context.Background(), nil)

		assert.Zero(t, result.TotalRecords)
		assert.Empty(t, result.ItemFailures)
		assert.Empty(t, result.Errors)
	})
}
