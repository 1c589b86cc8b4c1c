// Package cartstore keeps per-session cart lines. Lines are keyed by
// (session, product, weight): adding a pair that already exists merges
// into the existing line.
package cartstore

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// ErrNotFound is returned when a line id does not belong to the session.
var ErrNotFound = errors.New("cart item not found")

// Store is implemented by the in-memory arena and the Redis store.
type Store interface {
	Get(ctx context.Context, sessionID string) ([]models.CartItem, error)
	// Add inserts item or increments the matching line, returning the stored line.
	Add(ctx context.Context, item models.CartItem) (*models.CartItem, error)
	// Update sets a line's quantity; qty <= 0 removes it and returns nil.
	Update(ctx context.Context, sessionID string, id int64, qty int) (*models.CartItem, error)
	Remove(ctx context.Context, sessionID string, id int64) error
	Clear(ctx context.Context, sessionID string) error
}
