package dlq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwire/internal/audit"
	"bookwire/internal/broker"
	"bookwire/internal/config"
	"bookwire/internal/event"
	"bookwire/internal/logger"
	"bookwire/internal/workflow"
)

type fakeDLQReader struct {
	messages  []broker.DLQMessage
	depth     int64
	oldestAge time.Duration
}

func (f *fakeDLQReader) Drain(_ context.Context, limit int) ([]broker.DLQMessage, error) {
	if limit > 0 && limit < len(f.messages) {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

func (f *fakeDLQReader) Depth(context.Context) (int64, error) {
	return f.depth, nil
}

func (f *fakeDLQReader) OldestAge(context.Context) (time.Duration, error) {
	return f.oldestAge, nil
}

func (f *fakeDLQReader) Close() error { return nil }

type fakeTraceStore struct {
	audit.NopStore
	entries []audit.Entry
}

func (f *fakeTraceStore) FindWindow(context.Context, string, time.Time, time.Duration) ([]audit.Entry, error) {
	return f.entries, nil
}

type fakeProducer struct {
	published []broker.OutboundMessage
}

func (f *fakeProducer) Publish(_ context.Context, msg broker.OutboundMessage) error {
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func statusPtr(s workflow.BookStatus) *workflow.BookStatus { return &s }

func validBody(t *testing.T) []byte {
	t.Helper()
	evt := event.New("book-workflow-service", event.StatusChangeData{
		BookID:         "book-9",
		Title:          "Night Trains",
		Author:         "A. Behrman",
		PreviousStatus: statusPtr(workflow.StatusDraft),
		NewStatus:      workflow.StatusSubmittedForEditing,
		ChangedBy:      "author-3",
	})
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return body
}

func newAnalyzer(reader broker.DLQReader, traces audit.Store) *Analyzer {
	return NewAnalyzer(reader, traces, event.NewValidator(nil), 3, logger.NopLogger())
}

func dlqMsg(id string, body []byte) broker.DLQMessage {
	return broker.DLQMessage{
		MessageID:    id,
		Body:         body,
		ReceiveCount: 1,
		EnqueuedAt:   time.Now().Add(-time.Hour),
		FailedAt:     time.Now().Add(-time.Hour),
	}
}

func TestAnalyzeMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid json", func(t *testing.T) {
		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, dlqMsg("m1", []byte("{broken")))
		assert.Equal(t, ErrorTypeInvalidFormat, got.ErrorType)
		assert.False(t, got.IsReprocessable)
	})

	t.Run("json but not a status event", func(t *testing.T) {
		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, dlqMsg("m1", []byte(`{"eventType":"order_created"}`)))
		assert.Equal(t, ErrorTypeEventDetection, got.ErrorType)
		assert.False(t, got.IsReprocessable)
	})

	t.Run("event with constraint violations", func(t *testing.T) {
		var evt event.StatusChangeEvent
		require.NoError(t, json.Unmarshal(validBody(t), &evt))
		evt.EventID = "not-a-uuid"
		body, err := json.Marshal(&evt)
		require.NoError(t, err)

		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, dlqMsg("m1", body))
		assert.Equal(t, ErrorTypeInvalidEventData, got.ErrorType)
		assert.Contains(t, got.RootCause, "eventId")
		assert.False(t, got.IsReprocessable)
	})

	t.Run("timeout failure code", func(t *testing.T) {
		msg := dlqMsg("m1", validBody(t))
		msg.FailureCode = "TIMEOUT"
		msg.FailureReason = "smtp dial timed out"

		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, msg)
		assert.Equal(t, ErrorTypeTimeout, got.ErrorType)
		assert.True(t, got.IsReprocessable)
	})

	t.Run("validation failure code", func(t *testing.T) {
		msg := dlqMsg("m1", validBody(t))
		msg.FailureCode = "VALIDATION_ERROR"
		msg.FailureReason = "no email template for notification type"

		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, msg)
		assert.Equal(t, ErrorTypeValidation, got.ErrorType)
		assert.False(t, got.IsReprocessable)
	})

	t.Run("timeout diagnosed from correlated traces", func(t *testing.T) {
		traces := &fakeTraceStore{entries: []audit.Entry{
			{MessageID: "m1", Stage: audit.StageSend, Level: audit.LevelError, Detail: "context deadline exceeded: smtp send timeout"},
		}}

		a := newAnalyzer(&fakeDLQReader{}, traces)
		got := a.AnalyzeMessage(ctx, dlqMsg("m1", validBody(t)))
		assert.Equal(t, ErrorTypeTimeout, got.ErrorType)
		assert.True(t, got.IsReprocessable)
		assert.Len(t, got.CorrelatedTraces, 1)
	})

	t.Run("repeated failure by receive count", func(t *testing.T) {
		msg := dlqMsg("m1", validBody(t))
		msg.ReceiveCount = 3

		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, msg)
		assert.Equal(t, ErrorTypeRepeatedFailure, got.ErrorType)
		assert.True(t, got.IsReprocessable)
	})

	t.Run("unknown when nothing matches", func(t *testing.T) {
		a := newAnalyzer(&fakeDLQReader{}, nil)
		got := a.AnalyzeMessage(ctx, dlqMsg("m1", validBody(t)))
		assert.Equal(t, ErrorTypeUnknown, got.ErrorType)
		assert.False(t, got.IsReprocessable)
	})
}

func TestAnalyzeReport(t *testing.T) {
	t.Run("empty queue needs no action", func(t *testing.T) {
		a := newAnalyzer(&fakeDLQReader{}, nil)
		report, err := a.Analyze(context.Background(), 0)
		require.NoError(t, err)
		assert.Zero(t, report.TotalMessages)
		assert.Equal(t, "Dead letter queue is empty, no action needed.", report.Summary)
	})

	t.Run("aggregates by error type", func(t *testing.T) {
		timeoutMsg := dlqMsg("m2", validBody(t))
		timeoutMsg.FailureCode = "TIMEOUT"
		reader := &fakeDLQReader{messages: []broker.DLQMessage{
			dlqMsg("m1", []byte("{broken")),
			timeoutMsg,
		}}

		a := newAnalyzer(reader, nil)
		report, err := a.Analyze(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 2, report.TotalMessages)
		assert.Equal(t, 1, report.ByErrorType[ErrorTypeInvalidFormat])
		assert.Equal(t, 1, report.ByErrorType[ErrorTypeTimeout])
		assert.Equal(t, 1, report.Reprocessable)
		assert.False(t, report.OldestTimestamp.IsZero())
		assert.False(t, report.OldestTimestamp.After(report.NewestTimestamp))
		assert.NotEmpty(t, report.Analyses[0].Recommendation)
		assert.Contains(t, report.Summary, "2 dead-lettered messages")
		assert.Contains(t, report.Summary, "1 can be reprocessed")
	})
}

func TestReprocessor(t *testing.T) {
	newReprocessor := func(reader broker.DLQReader, producer broker.Producer) *Reprocessor {
		analyzer := newAnalyzer(reader, nil)
		return NewReprocessor(reader, producer, analyzer, "book-status-events", 3, logger.NopLogger())
	}

	timeoutMsg := func(t *testing.T, id string) broker.DLQMessage {
		msg := dlqMsg(id, validBody(t))
		msg.FailureCode = "TIMEOUT"
		return msg
	}

	t.Run("dry run publishes nothing", func(t *testing.T) {
		reader := &fakeDLQReader{messages: []broker.DLQMessage{timeoutMsg(t, "m1")}}
		producer := &fakeProducer{}

		result, err := newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, result.Reprocessed)
		assert.Empty(t, producer.published)
	})

	t.Run("republishes with reset delivery history", func(t *testing.T) {
		reader := &fakeDLQReader{messages: []broker.DLQMessage{timeoutMsg(t, "m1")}}
		producer := &fakeProducer{}

		result, err := newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, result.Reprocessed)
		require.Len(t, producer.published, 1)

		msg := producer.published[0]
		assert.Equal(t, "book-status-events", msg.Topic)
		assert.Equal(t, "1", msg.Headers["receive_count"])
	})

	t.Run("skips structurally broken messages even when targeted", func(t *testing.T) {
		reader := &fakeDLQReader{messages: []broker.DLQMessage{dlqMsg("m1", []byte("{broken"))}}
		producer := &fakeProducer{}

		result, err := newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{MessageIDs: []string{"m1"}})
		require.NoError(t, err)
		assert.Empty(t, result.Reprocessed)
		assert.Equal(t, SkipUnparseable, result.Skipped["m1"])
		assert.Empty(t, producer.published)
	})

	t.Run("skips non-reprocessable unless targeted", func(t *testing.T) {
		unknown := dlqMsg("m1", validBody(t))
		reader := &fakeDLQReader{messages: []broker.DLQMessage{unknown}}
		producer := &fakeProducer{}

		result, err := newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Reprocessed)
		assert.Equal(t, SkipNotReprocessable, result.Skipped["m1"])

		producer = &fakeProducer{}
		result, err = newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{MessageIDs: []string{"m1"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, result.Reprocessed)
		assert.Len(t, producer.published, 1)
	})

	t.Run("never republishes past the redelivery cap", func(t *testing.T) {
		exhausted := timeoutMsg(t, "m1")
		exhausted.ReceiveCount = 10
		reader := &fakeDLQReader{messages: []broker.DLQMessage{exhausted}}
		producer := &fakeProducer{}

		result, err := newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Reprocessed)
		assert.Equal(t, SkipOverMaxReceives, result.Skipped["m1"])
		assert.Empty(t, producer.published)

		producer = &fakeProducer{}
		result, err = newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{MessageIDs: []string{"m1"}})
		require.NoError(t, err)
		assert.Empty(t, result.Reprocessed)
		assert.Equal(t, SkipOverMaxReceives, result.Skipped["m1"])
		assert.Empty(t, producer.published)
	})

	t.Run("unselected messages are left alone", func(t *testing.T) {
		reader := &fakeDLQReader{messages: []broker.DLQMessage{timeoutMsg(t, "m1"), timeoutMsg(t, "m2")}}
		producer := &fakeProducer{}

		result, err := newReprocessor(reader, producer).Reprocess(context.Background(), ReprocessOptions{MessageIDs: []string{"m2"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"m2"}, result.Reprocessed)
		assert.Equal(t, SkipNotSelected, result.Skipped["m1"])
	})
}

func TestMonitor(t *testing.T) {
	cfg := config.MonitorConfig{
		WarningDepth:  10,
		CriticalDepth: 100,
		WarningAge:    time.Hour,
		CriticalAge:   24 * time.Hour,
	}

	t.Run("healthy", func(t *testing.T) {
		m := NewMonitor(&fakeDLQReader{depth: 0}, cfg, logger.NopLogger())
		health, err := m.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusHealthy, health.Status)
		assert.Empty(t, health.Alerts)
	})

	t.Run("warning on accumulation", func(t *testing.T) {
		m := NewMonitor(&fakeDLQReader{depth: 15, oldestAge: 10 * time.Minute}, cfg, logger.NopLogger())
		health, err := m.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusWarning, health.Status)
		require.Len(t, health.Alerts, 1)
		assert.Equal(t, AlertMessageAccumulation, health.Alerts[0].Type)
	})

	t.Run("growth between samples raises an alert", func(t *testing.T) {
		reader := &fakeDLQReader{depth: 2, oldestAge: time.Minute}
		m := NewMonitor(reader, cfg, logger.NopLogger())

		_, err := m.Check(context.Background())
		require.NoError(t, err)

		reader.depth = 5
		health, err := m.Check(context.Background())
		require.NoError(t, err)
		require.Len(t, health.Alerts, 1)
		assert.Equal(t, AlertGrowthRate, health.Alerts[0].Type)
		assert.Equal(t, StatusWarning, health.Status)
	})

	t.Run("snapshots leave the growth baseline alone", func(t *testing.T) {
		reader := &fakeDLQReader{depth: 2, oldestAge: time.Minute}
		m := NewMonitor(reader, cfg, logger.NopLogger())

		_, err := m.Check(context.Background())
		require.NoError(t, err)

		reader.depth = 5
		_, err = m.Snapshot(context.Background())
		require.NoError(t, err)

		health, err := m.Check(context.Background())
		require.NoError(t, err)
		require.Len(t, health.Alerts, 1)
		assert.Equal(t, AlertGrowthRate, health.Alerts[0].Type)
		assert.Contains(t, health.Alerts[0].Message, "grew by 3")
	})

	t.Run("concurrent checks and snapshots", func(t *testing.T) {
		m := NewMonitor(&fakeDLQReader{depth: 1}, cfg, logger.NopLogger())

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_, err := m.Check(context.Background())
					assert.NoError(t, err)
				}
			}()
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_, err := m.Snapshot(context.Background())
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("critical on depth and stale age", func(t *testing.T) {
		m := NewMonitor(&fakeDLQReader{depth: 150, oldestAge: 48 * time.Hour}, cfg, logger.NopLogger())
		health, err := m.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusCritical, health.Status)
		require.Len(t, health.Alerts, 2)
		assert.Equal(t, AlertStaleMessages, health.Alerts[1].Type)
	})
}
