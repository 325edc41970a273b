package audit

import (
	"context"
	"time"
)

const (
	StageUnwrap   = "unwrap"
	StageValidate = "validate"
	StageMap      = "map"
	StageRender   = "render"
	StageSend     = "send"
	StagePublish  = "publish"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Entry is one per-record processing trace row. The consumer writes one per
// outcome; the DLQ analyzer reads them back to correlate dead-lettered
// messages with what the pipeline saw.
type Entry struct {
	ID           string
	MessageID    string
	EventID      string
	BookID       string
	Stage        string
	Level        string
	Detail       string
	ReceiveCount int
	CreatedAt    time.Time
}

type Store interface {
	Record(ctx context.Context, entry Entry) error
	// FindWindow returns traces for messageID within center±window, oldest
	// first.
	FindWindow(ctx context.Context, messageID string, center time.Time, window time.Duration) ([]Entry, error)
}

// NopStore is used when no trace database is configured.
type NopStore struct{}

func (NopStore) Record(context.Context, Entry) error {
	return nil
}

func (NopStore) FindWindow(context.Context, string, time.Time, time.Duration) ([]Entry, error) {
	return nil, nil
}
