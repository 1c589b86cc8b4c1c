package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCheckoutUpdated  = "CHECKOUT_UPDATED"
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderLineCreated = "ORDER_LINE_CREATED"
	EventTypeOrderPaymentSet  = "ORDER_PAYMENT_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutUpdatedEvent carries a full snapshot of a checkout; consumers overwrite, never merge.
type CheckoutUpdatedEvent struct {
	BaseEvent
	CheckoutID string         `json:"checkout_id"`
	SessionID  string         `json:"session_id"`
	Status     string         `json:"status"`
	Personal   map[string]any `json:"personal,omitempty"`
	Shipping   map[string]any `json:"shipping,omitempty"`
	Payment    map[string]any `json:"payment,omitempty"`
}

// OrderLineCreatedEvent is published once per persisted order line.
type OrderLineCreatedEvent struct {
	BaseEvent
	Line Order `json:"line"`
}

// OrderCreatedEvent is published once per order and drives the confirmation email.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID         string          `json:"order_id"`
	CustomerName    string          `json:"customer_name"`
	Email           string          `json:"email"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	Items           []OrderItemData `json:"items"`
	DiscountCode    string          `json:"discount_code,omitempty"`
	ShippingAddress string          `json:"shipping_address"`
}

// OrderPaymentStatusEvent is published when an order's payment status changes.
type OrderPaymentStatusEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Weight    string          `json:"weight,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}
