package store

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AppendOutbox records an event for the relay. Call it inside WithTx so the
// event commits with the state change it describes.
func (s *Store) AppendOutbox(ctx context.Context, eventID, eventType, aggregateID string, payload interface{}) error {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = s.ext.ExecContext(ctx, `
		INSERT INTO outbox_events (event_id, event_type, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)`,
		eventID, eventType, aggregateID, string(raw))
	return err
}

// FetchUnpublished locks a batch of pending events. Use within WithTx.
func (s *Store) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	events := []models.OutboxEvent{}
	err := sqlx.SelectContext(ctx, s.ext, &events, `
		SELECT id, event_id, event_type, aggregate_id, payload,
			attempts, last_error, published_at, created_at
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, maxAttempts, limit)
	return events, err
}

// MarkPublished flags an event as delivered.
func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.ext.ExecContext(ctx,
		"UPDATE outbox_events SET published_at = NOW(), attempts = attempts + 1, last_error = NULL WHERE id = $1", id)
	return err
}

// MarkFailed records a failed delivery attempt.
func (s *Store) MarkFailed(ctx context.Context, id int64, cause error) error {
	msg := cause.Error()
	_, err := s.ext.ExecContext(ctx,
		"UPDATE outbox_events SET attempts = attempts + 1, last_error = $1 WHERE id = $2", msg, id)
	return err
}
