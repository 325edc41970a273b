package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second

	// DLQReadTimeout bounds each read while draining the dead letter topic;
	// hitting it means the topic tail has been reached.
	DLQReadTimeout = 3 * time.Second
)

const (
	DefaultInputTopic = "book-status-events"
	DefaultDLQTopic   = "book-status-events-dlq"
)

const (
	DefaultBatchSize   = 10
	DefaultBatchWindow = 2 * time.Second
)

// DefaultMaxReceiveCount mirrors the queue platform's redelivery cap: a
// record past this many deliveries is routed to the DLQ instead of being
// redelivered again.
const DefaultMaxReceiveCount = 3

const (
	PublishMaxAttempts = 3
)

// DescriptionMaxLen caps free-text fields (change reasons, failure payload
// snippets) before they are attached to events or logs.
const DescriptionMaxLen = 200

// CorrelationWindow is the span around a DLQ message's enqueue time searched
// for related processing traces.
const CorrelationWindow = 5 * time.Minute

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultCCFallbackEmail = "publishing-ops@bookwire.io"
	DefaultTargetEmail     = "publishing-ops@bookwire.io"
	DefaultFromEmail       = "notifications@bookwire.io"
)

// Receive-count and failure metadata travel as Kafka message headers.
const (
	HeaderMessageID     = "message_id"
	HeaderReceiveCount  = "receive_count"
	HeaderFailureReason = "failure_reason"
	HeaderFailureStage  = "failure_stage"
	HeaderFailureCode   = "failure_code"
	HeaderSourceTopic   = "source_topic"
	HeaderFailedAt      = "failed_at"
)
