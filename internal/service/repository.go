package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

// Repository is the persistence the services need. Writes that must commit
// together run inside WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	UpsertCustomer(ctx context.Context, c *models.Customer) error

	InsertCheckout(ctx context.Context, c *models.CheckoutRecord) error
	UpdateCheckout(ctx context.Context, c *models.CheckoutRecord, from string) error
	GetCheckout(ctx context.Context, checkoutID string) (*models.CheckoutRecord, error)
	ListStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutRecord, error)

	InsertOrderLine(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	CountOrders(ctx context.Context, search string) (int64, error)
	GetOrderLine(ctx context.Context, id int64) (*models.Order, error)
	GetOrderLines(ctx context.Context, orderID string) ([]models.Order, error)
	UpdateOrderPaymentStatus(ctx context.Context, orderID, status string) error
	UpdatePaymentStatusByIntent(ctx context.Context, intentID, status string) ([]string, error)
	ClaimPaymentIntent(ctx context.Context, intentID, orderID string) error
	OrderForIntent(ctx context.Context, intentID string) (string, error)

	AppendOutbox(ctx context.Context, eventID, eventType, aggregateID string, payload interface{}) error
}

type storeRepository struct {
	*store.Store
}

// NewRepository adapts the SQL store.
func NewRepository(s *store.Store) Repository {
	return storeRepository{Store: s}
}

func (r storeRepository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.Store.WithTx(ctx, func(tx *store.Store) error {
		return fn(storeRepository{Store: tx})
	})
}
