package event

import (
	"time"

	"github.com/google/uuid"

	"bookwire/internal/workflow"
)

const (
	// TypeBookStatusChanged is the only event type this pipeline carries.
	TypeBookStatusChanged = "book_status_changed"

	// Version is pinned; consumers reject anything else.
	Version = "1.0"
)

// StatusChangeEvent is the canonical wire envelope for a book status
// mutation. Immutable once serialized.
type StatusChangeEvent struct {
	EventType string           `json:"eventType"`
	EventID   string           `json:"eventId"`
	Timestamp string           `json:"timestamp"`
	Source    string           `json:"source"`
	Version   string           `json:"version"`
	Data      StatusChangeData `json:"data"`
}

type StatusChangeData struct {
	BookID         string                 `json:"bookId"`
	Title          string                 `json:"title"`
	Author         string                 `json:"author"`
	PreviousStatus *workflow.BookStatus   `json:"previousStatus"`
	NewStatus      workflow.BookStatus    `json:"newStatus"`
	ChangedBy      string                 `json:"changedBy"`
	ChangeReason   string                 `json:"changeReason,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// New builds a fresh envelope around the given payload with a generated
// event id and the current UTC time.
func New(source string, data StatusChangeData) *StatusChangeEvent {
	return &StatusChangeEvent{
		EventType: TypeBookStatusChanged,
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    source,
		Version:   Version,
		Data:      data,
	}
}

// EnqueueTime parses the envelope timestamp; zero time if unparseable.
func (e *StatusChangeEvent) EnqueueTime() time.Time {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
