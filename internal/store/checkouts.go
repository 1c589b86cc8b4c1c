package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertCheckout stores a new checkout record.
func (s *Store) InsertCheckout(ctx context.Context, c *models.CheckoutRecord) error {
	query := `
		INSERT INTO checkouts (checkout_id, session_id, status, personal, shipping, payment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return s.ext.QueryRowxContext(ctx, query,
		c.CheckoutID, c.SessionID, c.Status,
		nullJSON(c.Personal), nullJSON(c.Shipping), nullJSON(c.Payment),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// ErrStatusConflict is returned by UpdateCheckout when the stored status is
// no longer the one the caller read.
var ErrStatusConflict = errors.New("checkout status changed")

// UpdateCheckout writes the status and step payloads of a checkout whose
// stored status is still from.
func (s *Store) UpdateCheckout(ctx context.Context, c *models.CheckoutRecord, from string) error {
	query := `
		UPDATE checkouts
		SET status = $1, personal = $2, shipping = $3, payment = $4, updated_at = NOW()
		WHERE checkout_id = $5 AND status = $6
		RETURNING created_at, updated_at`

	err := s.ext.QueryRowxContext(ctx, query,
		c.Status, nullJSON(c.Personal), nullJSON(c.Shipping), nullJSON(c.Payment), c.CheckoutID, from,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var current string
	err = sqlx.GetContext(ctx, s.ext, &current, "SELECT status FROM checkouts WHERE checkout_id = $1", c.CheckoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, c.CheckoutID, current, from)
}

// GetCheckout loads a checkout record.
func (s *Store) GetCheckout(ctx context.Context, checkoutID string) (*models.CheckoutRecord, error) {
	var c models.CheckoutRecord
	err := sqlx.GetContext(ctx, s.ext, &c, `
		SELECT checkout_id, session_id, status,
			COALESCE(personal, 'null') AS personal,
			COALESCE(shipping, 'null') AS shipping,
			COALESCE(payment, 'null') AS payment,
			mirror_record_id, created_at, updated_at
		FROM checkouts WHERE checkout_id = $1`, checkoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetCheckoutMirrorID remembers the external record id for a checkout.
func (s *Store) SetCheckoutMirrorID(ctx context.Context, checkoutID, recordID string) error {
	_, err := s.ext.ExecContext(ctx,
		"UPDATE checkouts SET mirror_record_id = $1 WHERE checkout_id = $2",
		recordID, checkoutID)
	return err
}

// ListStaleCheckouts returns non-terminal checkouts idle since before cutoff.
func (s *Store) ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutRecord, error) {
	records := []models.CheckoutRecord{}
	err := sqlx.SelectContext(ctx, s.ext, &records, `
		SELECT checkout_id, session_id, status,
			COALESCE(personal, 'null') AS personal,
			COALESCE(shipping, 'null') AS shipping,
			COALESCE(payment, 'null') AS payment,
			mirror_record_id, created_at, updated_at
		FROM checkouts
		WHERE status NOT IN ('completed', 'abandoned') AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, cutoff, limit)
	return records, err
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
