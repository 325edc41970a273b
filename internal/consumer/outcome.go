package consumer

import (
	"time"
)

// Outcome is the three-way per-record verdict. A boolean cannot express the
// critical distinction: structural failures must never be redelivered,
// transient ones must be.
type Outcome int

const (
	// OutcomeAck: processed (or deliberately filtered); delete from queue.
	OutcomeAck Outcome = iota
	// OutcomeRetry: transient failure; ask the queue to redeliver.
	OutcomeRetry
	// OutcomePermanent: unprocessable from record one; never redeliver.
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRetry:
		return "retry"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Record is one delivery from the queue runtime. Partition and Offset locate
// the delivery on its source topic for commit bookkeeping.
type Record struct {
	ID           string
	Body         []byte
	ReceiveCount int
	Partition    int
	Offset       int64
	Timestamp    time.Time
	Attributes   map[string]string
}

// ItemFailure marks a record for redelivery. Only transient failures appear
// here; permanent failures are reported failed without being listed.
type ItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

type RecordResult struct {
	ID      string
	Outcome Outcome
	Stage   string
	Err     error
}

type BatchResult struct {
	TotalRecords          int
	SuccessfullyProcessed int
	Failed                int
	ItemFailures          []ItemFailure
	Errors                []string
	Results               []RecordResult
}
