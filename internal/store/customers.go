package store

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/models"
)

// UpsertCustomer inserts the session's customer or updates the fields that
// are non-empty in c; empty fields keep their stored value.
func (s *Store) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (session_id, first_name, last_name, email, phone,
			address, city, state, zip, country, shipping_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO UPDATE SET
			first_name      = COALESCE(NULLIF(EXCLUDED.first_name, ''), customers.first_name),
			last_name       = COALESCE(NULLIF(EXCLUDED.last_name, ''), customers.last_name),
			email           = COALESCE(NULLIF(EXCLUDED.email, ''), customers.email),
			phone           = COALESCE(NULLIF(EXCLUDED.phone, ''), customers.phone),
			address         = COALESCE(NULLIF(EXCLUDED.address, ''), customers.address),
			city            = COALESCE(NULLIF(EXCLUDED.city, ''), customers.city),
			state           = COALESCE(NULLIF(EXCLUDED.state, ''), customers.state),
			zip             = COALESCE(NULLIF(EXCLUDED.zip, ''), customers.zip),
			country         = COALESCE(NULLIF(EXCLUDED.country, ''), customers.country),
			shipping_method = COALESCE(NULLIF(EXCLUDED.shipping_method, ''), customers.shipping_method),
			updated_at      = NOW()
		RETURNING *`

	return s.ext.QueryRowxContext(ctx, query,
		c.SessionID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.Address, c.City, c.State, c.Zip, c.Country, c.ShippingMethod,
	).StructScan(c)
}

// GetCustomerBySession returns the customer captured for a session.
func (s *Store) GetCustomerBySession(ctx context.Context, sessionID string) (*models.Customer, error) {
	var c models.Customer
	err := s.ext.QueryRowxContext(ctx, "SELECT * FROM customers WHERE session_id = $1", sessionID).StructScan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
