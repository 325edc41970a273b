package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO processing_traces (id, message_id, event_id, book_id, stage, level, detail, receive_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		id, entry.MessageID, nullable(entry.EventID), nullable(entry.BookID),
		entry.Stage, entry.Level, nullable(entry.Detail), entry.ReceiveCount, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record processing trace: %w", err)
	}

	return nil
}

func (s *PostgresStore) FindWindow(ctx context.Context, messageID string, center time.Time, window time.Duration) ([]Entry, error) {
	query := `
		SELECT id, message_id, COALESCE(event_id, ''), COALESCE(book_id, ''), stage, level, COALESCE(detail, ''), receive_count, created_at
		FROM processing_traces
		WHERE message_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, messageID, center.Add(-window), center.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to query processing traces: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.MessageID, &e.EventID, &e.BookID,
			&e.Stage, &e.Level, &e.Detail, &e.ReceiveCount, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan processing trace: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processing traces: %w", err)
	}

	return entries, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
