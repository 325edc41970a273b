package dlq

import (
	"time"

	"bookwire/internal/audit"
)

// ErrorType is the operator-facing failure classification for a
// dead-lettered message.
type ErrorType string

const (
	// ErrorTypeEventDetection: payload is JSON but not a recognizable
	// status-change event.
	ErrorTypeEventDetection ErrorType = "EVENT_DETECTION_ERROR"
	// ErrorTypeInvalidFormat: payload is not parseable JSON at all.
	ErrorTypeInvalidFormat ErrorType = "INVALID_MESSAGE_FORMAT"
	// ErrorTypeInvalidEventData: envelope parses but violates event
	// constraints.
	ErrorTypeInvalidEventData ErrorType = "INVALID_EVENT_DATA"
	// ErrorTypeValidation: rejected by downstream validation during
	// processing.
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	// ErrorTypeTimeout: processing timed out; typically a slow dependency.
	ErrorTypeTimeout ErrorType = "PROCESSING_TIMEOUT"
	// ErrorTypeRepeatedFailure: exhausted its redeliveries without a more
	// specific diagnosis.
	ErrorTypeRepeatedFailure ErrorType = "REPEATED_FAILURE"
	ErrorTypeUnknown         ErrorType = "UNKNOWN_ERROR"
)

// Structural and validation failures would fail identically on replay, so
// only time-dependent classes are worth reprocessing.
var reprocessable = map[ErrorType]bool{
	ErrorTypeTimeout:         true,
	ErrorTypeRepeatedFailure: true,
}

func (t ErrorType) IsReprocessable() bool {
	return reprocessable[t]
}

var recommendations = map[ErrorType]string{
	ErrorTypeEventDetection:   "Fix the producer emitting non-event payloads, then purge.",
	ErrorTypeInvalidFormat:    "Payload is garbage; trace the producer and purge.",
	ErrorTypeInvalidEventData: "Producer violates the event contract; fix it, then purge.",
	ErrorTypeValidation:       "Processing rules rejected the event; review the rules or purge.",
	ErrorTypeTimeout:          "Likely a slow dependency; reprocess once it has recovered.",
	ErrorTypeRepeatedFailure:  "Check dependency health, then reprocess.",
	ErrorTypeUnknown:          "Inspect traces manually before deciding.",
}

// Recommendation is the operator guidance attached to every diagnosis.
func (t ErrorType) Recommendation() string {
	if r, ok := recommendations[t]; ok {
		return r
	}
	return recommendations[ErrorTypeUnknown]
}

// MessageAnalysis is the per-message diagnosis.
type MessageAnalysis struct {
	MessageID         string
	ErrorType         ErrorType
	RootCause         string
	Recommendation    string
	IsReprocessable   bool
	FailureReason     string
	FailureStage      string
	ReceiveCount      int
	OriginalTimestamp time.Time
	CorrelatedTraces  []audit.Entry
}

// Report aggregates an analysis run over the whole queue.
type Report struct {
	TotalMessages   int
	ByErrorType     map[ErrorType]int
	Reprocessable   int
	OldestTimestamp time.Time
	NewestTimestamp time.Time
	Analyses        []MessageAnalysis
	Summary         string
}
