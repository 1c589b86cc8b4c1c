package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderID returns an id like ORD-1718000000000-QXKZP.
func NewOrderID(now time.Time) string {
	var b strings.Builder
	max := big.NewInt(int64(len(orderIDAlphabet)))
	for i := 0; i < 5; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(orderIDAlphabet)))
		}
		b.WriteByte(orderIDAlphabet[n.Int64()])
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), b.String())
}

// OrderInput is everything needed to turn a cart into order lines.
type OrderInput struct {
	SessionID       string
	Personal        checkout.PersonalInfo
	Shipping        checkout.ShippingInfo
	Items           []models.CartItem
	PaymentMethod   string
	PaymentStatus   string
	PaymentIntentID string
	Discount        *checkout.Discount
}

// OrderResult describes the persisted order.
type OrderResult struct {
	OrderID string         `json:"orderId"`
	Lines   []models.Order `json:"lines"`
	Totals  pricing.Totals `json:"totals"`
}

// OrderWriter persists one order line per cart line, all sharing an order id.
type OrderWriter struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewOrderWriter creates a new order writer
func NewOrderWriter() *OrderWriter {
	return &OrderWriter{
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// Write inserts the order lines and their outbox events through repo, which
// should be a transaction. Items without a product are rejected.
func (w *OrderWriter) Write(ctx context.Context, repo Repository, in OrderInput) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderWriter.Write")
	defer span.End()

	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]pricing.Line, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Product == nil {
			return nil, ErrProductUnavailable
		}
		lines = append(lines, pricing.Line{UnitPrice: item.Product.PriceFor(item.Weight), Quantity: item.Quantity})
	}

	pct := decimal.Zero
	discountCode := ""
	discountPercent := decimal.NullDecimal{}
	if in.Discount != nil && in.Discount.Percent.GreaterThan(decimal.Zero) {
		pct = in.Discount.Percent
		discountCode = in.Discount.Code
		discountPercent = decimal.NewNullDecimal(pct)
	}

	totals := pricing.Compute(lines, pct)
	lineTotals := pricing.AllocateDiscount(lines, pct)

	now := w.now()
	orderID := NewOrderID(now)
	result := &OrderResult{OrderID: orderID, Totals: totals, Lines: make([]models.Order, 0, len(in.Items))}
	eventItems := make([]models.OrderItemData, 0, len(in.Items))

	for i, item := range in.Items {
		line := models.Order{
			OrderID:         orderID,
			SessionID:       in.SessionID,
			FirstName:       in.Personal.FirstName,
			LastName:        in.Personal.LastName,
			Email:           in.Personal.Email,
			Phone:           in.Personal.Phone,
			Address:         in.Shipping.Address,
			City:            in.Shipping.City,
			State:           in.Shipping.State,
			Zip:             in.Shipping.Zip,
			Country:         in.Shipping.Country,
			ProductID:       item.ProductID,
			ProductName:     item.Product.Name,
			Quantity:        item.Quantity,
			Weight:          item.Weight,
			UnitPrice:       lines[i].UnitPrice,
			LineTotal:       lineTotals[i],
			ShippingMethod:  in.Shipping.Method,
			ShippingPrice:   totals.Shipping,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   in.PaymentStatus,
			PaymentIntentID: in.PaymentIntentID,
			DiscountCode:    discountCode,
			DiscountPercent: discountPercent,
		}
		if err := repo.InsertOrderLine(ctx, &line); err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}

		lineEvent := models.OrderLineCreatedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderLineCreated, now),
			Line:      line,
		}
		if err := repo.AppendOutbox(ctx, lineEvent.EventID, lineEvent.EventType, orderID, lineEvent); err != nil {
			return nil, fmt.Errorf("append order line event: %w", err)
		}

		result.Lines = append(result.Lines, line)
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: line.ProductID,
			Name:      line.ProductName,
			Weight:    line.Weight,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}

	created := models.OrderCreatedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderCreated, now),
		OrderID:         orderID,
		CustomerName:    strings.TrimSpace(in.Personal.FirstName + " " + in.Personal.LastName),
		Email:           in.Personal.Email,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   in.PaymentStatus,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Items:           eventItems,
		DiscountCode:    discountCode,
		ShippingAddress: formatAddress(in.Shipping),
	}
	if err := repo.AppendOutbox(ctx, created.EventID, created.EventType, orderID, created); err != nil {
		return nil, fmt.Errorf("append order created event: %w", err)
	}

	util.OrderLinesCreatedTotal.Add(float64(len(result.Lines)))
	w.logger.Info("Order written",
		zap.String("order_id", orderID),
		zap.Int("lines", len(result.Lines)),
		zap.String("total", totals.Total.StringFixed(2)))

	return result, nil
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: now.UTC(),
	}
}

func formatAddress(s checkout.ShippingInfo) string {
	parts := []string{s.Address, s.City, strings.TrimSpace(s.State + " " + s.Zip)}
	if s.Country != "" {
		parts = append(parts, s.Country)
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
