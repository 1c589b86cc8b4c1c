package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// IsEventProcessed checks if consumer has already handled an event
func (s *Store) IsEventProcessed(ctx context.Context, eventID, consumer string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.ext, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer = $2)",
		eventID, consumer)
	return exists, err
}

// MarkEventProcessed marks an event as processed by consumer
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType, consumer string) error {
	_, err := s.ext.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, event_type, consumer) VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, consumer) DO NOTHING`,
		eventID, eventType, consumer)
	return err
}
