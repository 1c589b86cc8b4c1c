package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WeightTiers lists the weight strings a product may carry a price override for.
var WeightTiers = []string{
	"5mg", "10mg", "15mg", "20mg", "30mg", "50mg",
	"60mg", "100mg", "200mg", "500mg", "1g", "5g",
}

// Product is a catalog entry translated from the external catalog.
type Product struct {
	ID           string                     `json:"id"`
	Slug         string                     `json:"slug"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description,omitempty"`
	Price        decimal.Decimal            `json:"price"`
	WeightPrices map[string]decimal.Decimal `json:"weightPrices,omitempty"`
	CategoryID   string                     `json:"categoryId,omitempty"`
	ImageURLs    []string                   `json:"imageUrls,omitempty"`
	InStock      bool                       `json:"inStock"`
	Featured     bool                       `json:"featured"`
}

// PriceFor returns the tier override for weight, falling back to the base price.
func (p *Product) PriceFor(weight string) decimal.Decimal {
	if weight != "" {
		if price, ok := p.WeightPrices[weight]; ok {
			return price
		}
	}
	return p.Price
}

// Category groups products.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// CartItem is one cart line owned by a session.
type CartItem struct {
	ID        int64    `json:"id"`
	SessionID string   `json:"-"`
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Weight    string   `json:"weight,omitempty"`
	Product   *Product `json:"product"`
}

// Customer is upserted by session id during checkout.
type Customer struct {
	ID             int64     `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"-"`
	FirstName      string    `db:"first_name" json:"firstName"`
	LastName       string    `db:"last_name" json:"lastName"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	Address        string    `db:"address" json:"address"`
	City           string    `db:"city" json:"city"`
	State          string    `db:"state" json:"state"`
	Zip            string    `db:"zip" json:"zip"`
	Country        string    `db:"country" json:"country"`
	ShippingMethod string    `db:"shipping_method" json:"shippingMethod"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Order is a single order line; all lines of one purchase share OrderID.
type Order struct {
	ID              int64               `db:"id" json:"id"`
	OrderID         string              `db:"order_id" json:"orderId"`
	SessionID       string              `db:"session_id" json:"-"`
	FirstName       string              `db:"first_name" json:"firstName"`
	LastName        string              `db:"last_name" json:"lastName"`
	Email           string              `db:"email" json:"email"`
	Phone           string              `db:"phone" json:"phone"`
	Address         string              `db:"address" json:"address"`
	City            string              `db:"city" json:"city"`
	State           string              `db:"state" json:"state"`
	Zip             string              `db:"zip" json:"zip"`
	Country         string              `db:"country" json:"country"`
	ProductID       string              `db:"product_id" json:"productId"`
	ProductName     string              `db:"product_name" json:"productName"`
	Quantity        int                 `db:"quantity" json:"quantity"`
	Weight          string              `db:"weight" json:"weight"`
	UnitPrice       decimal.Decimal     `db:"unit_price" json:"unitPrice"`
	LineTotal       decimal.Decimal     `db:"line_total" json:"lineTotal"`
	ShippingMethod  string              `db:"shipping_method" json:"shippingMethod"`
	ShippingPrice   decimal.Decimal     `db:"shipping_price" json:"shippingPrice"`
	PaymentMethod   string              `db:"payment_method" json:"paymentMethod"`
	PaymentStatus   string              `db:"payment_status" json:"paymentStatus"`
	PaymentIntentID string              `db:"payment_intent_id" json:"paymentIntentId,omitempty"`
	DiscountCode    string              `db:"discount_code" json:"discountCode,omitempty"`
	DiscountPercent decimal.NullDecimal `db:"discount_percent" json:"discountPercent,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updatedAt"`
}

// CheckoutRecord is the durable local copy of a checkout, mirrored externally.
type CheckoutRecord struct {
	CheckoutID     string          `db:"checkout_id" json:"checkoutId"`
	SessionID      string          `db:"session_id" json:"sessionId"`
	Status         string          `db:"status" json:"status"`
	Personal       json.RawMessage `db:"personal" json:"personal,omitempty"`
	Shipping       json.RawMessage `db:"shipping" json:"shipping,omitempty"`
	Payment        json.RawMessage `db:"payment" json:"payment,omitempty"`
	MirrorRecordID string          `db:"mirror_record_id" json:"mirrorRecordId,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// OutboxEvent is a locally persisted event awaiting relay to the broker.
type OutboxEvent struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID string     `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	Attempts    int        `db:"attempts"`
	LastError   *string    `db:"last_error"`
	PublishedAt *time.Time `db:"published_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Payment methods
const (
	PaymentMethodCard   = "card"
	PaymentMethodBank   = "bank"
	PaymentMethodCrypto = "crypto"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// ValidPaymentMethod reports whether m is one of the supported methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBank, PaymentMethodCrypto:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}
