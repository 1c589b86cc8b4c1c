package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// OrderQuery filters the admin order listing.
type OrderQuery struct {
	Search string
	Limit  int
	Offset int
}

// OrderService backs the admin order endpoints.
type OrderService struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(repo Repository) *OrderService {
	return &OrderService{
		repo:   repo,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// List returns order lines newest first.
func (s *OrderService) List(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.List")
	defer span.End()

	if q.Limit < 0 || q.Offset < 0 {
		return nil, validationError("limit and offset must not be negative")
	}
	orders, err := s.repo.ListOrders(ctx, store.OrderFilter{
		Search: strings.TrimSpace(q.Search),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Count returns the number of order lines matching search.
func (s *OrderService) Count(ctx context.Context, search string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Count")
	defer span.End()

	n, err := s.repo.CountOrders(ctx, strings.TrimSpace(search))
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Get returns the lines of an order. id is either an order id (ORD-...)
// or the numeric id of a single line.
func (s *OrderService) Get(ctx context.Context, id string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Get")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError("order id is required")
	}

	if rowID, err := strconv.ParseInt(id, 10, 64); err == nil {
		line, err := s.repo.GetOrderLine(ctx, rowID)
		if err != nil {
			return nil, notFound(err, "order %s", id)
		}
		return []models.Order{*line}, nil
	}

	lines, err := s.repo.GetOrderLines(ctx, id)
	if err != nil {
		return nil, notFound(err, "order %s", id)
	}
	return lines, nil
}

// UpdatePaymentStatus sets the payment status on every line of an order,
// e.g. after a bank transfer has been verified by hand.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID, status string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdatePaymentStatus")
	defer span.End()

	orderID = strings.TrimSpace(orderID)
	status = strings.ToLower(strings.TrimSpace(status))
	if orderID == "" {
		return validationError("order id is required")
	}
	if !models.ValidPaymentStatus(status) {
		return validationError("unknown payment status %q", status)
	}

	err := s.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.UpdateOrderPaymentStatus(ctx, orderID, status); err != nil {
			return notFound(err, "order %s", orderID)
		}
		return appendPaymentStatusEvent(ctx, tx, orderID, status, s.now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Order payment status updated",
		zap.String("order_id", orderID),
		zap.String("payment_status", status))
	return nil
}

// notFound maps the store's not-found sentinel onto the service one.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
