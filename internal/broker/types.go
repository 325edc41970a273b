package broker

import (
	"context"
	"time"

	"bookwire/internal/consumer"
)

// OutboundMessage is a broker-agnostic message to be published.
type OutboundMessage struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

type Producer interface {
	Publish(ctx context.Context, msg OutboundMessage) error
	Close() error
}

// BatchSource fetches records in bounded batches and commits the ones the
// pipeline is done with, whether they succeeded or were routed elsewhere.
// Records that cannot be committed yet are forgotten instead, so the group
// redelivers them after a restart or rebalance.
type BatchSource interface {
	FetchBatch(ctx context.Context) ([]consumer.Record, error)
	Commit(ctx context.Context, records ...consumer.Record) error
	Forget(records ...consumer.Record)
	Close() error
}

// DLQMessage is a dead-lettered record together with the failure metadata
// attached when it was parked.
type DLQMessage struct {
	MessageID     string
	Body          []byte
	Offset        int64
	Partition     int
	ReceiveCount  int
	FailureReason string
	FailureStage  string
	FailureCode   string
	SourceTopic   string
	FailedAt      time.Time
	EnqueuedAt    time.Time
}

// DLQReader inspects the dead letter topic without consuming from it.
type DLQReader interface {
	Drain(ctx context.Context, limit int) ([]DLQMessage, error)
	Depth(ctx context.Context) (int64, error)
	OldestAge(ctx context.Context) (time.Duration, error)
	Close() error
}
