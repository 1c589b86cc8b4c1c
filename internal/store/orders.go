package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const maxOrderPageSize = 200

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	Search string
	Limit  int
	Offset int
}

func (f OrderFilter) normalized() OrderFilter {
	if f.Limit <= 0 || f.Limit > maxOrderPageSize {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// searchClause matches the order id, customer name or email.
func searchClause(search string) (string, []interface{}) {
	if search == "" {
		return "", nil
	}
	pattern := "%" + search + "%"
	return ` WHERE order_id ILIKE $1 OR email ILIKE $1
		OR (first_name || ' ' || last_name) ILIKE $1`, []interface{}{pattern}
}

// InsertOrderLine writes one order line.
func (s *Store) InsertOrderLine(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (order_id, session_id, first_name, last_name, email, phone,
			address, city, state, zip, country, product_id, product_name, quantity, weight,
			unit_price, line_total, shipping_method, shipping_price, payment_method,
			payment_status, payment_intent_id, discount_code, discount_percent)
		VALUES (:order_id, :session_id, :first_name, :last_name, :email, :phone,
			:address, :city, :state, :zip, :country, :product_id, :product_name, :quantity, :weight,
			:unit_price, :line_total, :shipping_method, :shipping_price, :payment_method,
			:payment_status, :payment_intent_id, :discount_code, :discount_percent)
		RETURNING id, created_at, updated_at`

	query, args, err := sqlx.Named(query, o)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	return s.ext.QueryRowxContext(ctx, query, args...).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// ListOrders returns order lines, newest first.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	f = f.normalized()
	where, args := searchClause(f.Search)

	query := fmt.Sprintf("SELECT * FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, s.ext, &orders, query, args...)
	return orders, err
}

// CountOrders counts order lines matching search.
func (s *Store) CountOrders(ctx context.Context, search string) (int64, error) {
	where, args := searchClause(strings.TrimSpace(search))
	var n int64
	err := sqlx.GetContext(ctx, s.ext, &n, "SELECT COUNT(*) FROM orders"+where, args...)
	return n, err
}

// GetOrderLine returns a single order line by row id.
func (s *Store) GetOrderLine(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	err := sqlx.GetContext(ctx, s.ext, &o, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderLines returns every line sharing an order id.
func (s *Store) GetOrderLines(ctx context.Context, orderID string) ([]models.Order, error) {
	lines := []models.Order{}
	err := sqlx.SelectContext(ctx, s.ext, &lines,
		"SELECT * FROM orders WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNotFound
	}
	return lines, nil
}

// UpdateOrderPaymentStatus sets the payment status on every line of an order.
func (s *Store) UpdateOrderPaymentStatus(ctx context.Context, orderID, status string) error {
	res, err := s.ext.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE order_id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePaymentStatusByIntent sets the payment status on lines paid with
// intentID and returns the distinct order ids that changed.
func (s *Store) UpdatePaymentStatusByIntent(ctx context.Context, intentID, status string) ([]string, error) {
	orderIDs := []string{}
	err := sqlx.SelectContext(ctx, s.ext, &orderIDs, `
		WITH updated AS (
			UPDATE orders SET payment_status = $1, updated_at = NOW()
			WHERE payment_intent_id = $2 AND payment_status <> $1
			RETURNING order_id
		)
		SELECT DISTINCT order_id FROM updated`, status, intentID)
	return orderIDs, err
}

// ErrIntentUsed is returned when a payment intent already backs an order.
var ErrIntentUsed = errors.New("payment intent already used")

// ClaimPaymentIntent ties intentID to orderID. Each intent backs one order.
func (s *Store) ClaimPaymentIntent(ctx context.Context, intentID, orderID string) error {
	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO payment_intents (payment_intent_id, order_id)
		VALUES ($1, $2)
		ON CONFLICT (payment_intent_id) DO NOTHING`, intentID, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIntentUsed
	}
	return nil
}

// OrderForIntent returns the order paid with intentID.
func (s *Store) OrderForIntent(ctx context.Context, intentID string) (string, error) {
	var orderID string
	err := sqlx.GetContext(ctx, s.ext, &orderID,
		"SELECT order_id FROM payment_intents WHERE payment_intent_id = $1", intentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return orderID, err
}
