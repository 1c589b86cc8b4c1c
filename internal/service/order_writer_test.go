package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writerInput(items ...models.CartItem) OrderInput {
	return OrderInput{
		SessionID:     "s1",
		Personal:      checkout.PersonalInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Shipping:      checkout.ShippingInfo{Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701", Method: "standard"},
		Items:         items,
		PaymentMethod: models.PaymentMethodBank,
		PaymentStatus: models.PaymentStatusPending,
	}
}

func TestNewOrderID(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	id := NewOrderID(now)
	assert.Regexp(t, `^ORD-1718000000000-[A-Z]{5}$`, id)
}

func TestOrderWriter_OneOrderIDManyLines(t *testing.T) {
	repo := newFakeRepo()
	w := NewOrderWriter()
	in := writerInput(
		models.CartItem{ProductID: "p1", Quantity: 1, Product: product("p1", "19.99")},
		models.CartItem{ProductID: "p2", Quantity: 2, Product: product("p2", "5.01")},
		models.CartItem{ProductID: "p3", Quantity: 3, Product: product("p3", "0.33")},
	)
	in.Discount = &checkout.Discount{Code: "SAVE15", Percent: dec("15")}

	res, err := w.Write(context.Background(), repo, in)
	require.NoError(t, err)
	require.Len(t, repo.orders, 3)

	sum := decimal.Zero
	for _, line := range repo.orders {
		assert.Equal(t, res.OrderID, line.OrderID)
		assert.Equal(t, "SAVE15", line.DiscountCode)
		assert.True(t, line.DiscountPercent.Valid)
		sum = sum.Add(line.LineTotal)
	}
	assert.True(t, sum.Equal(res.Totals.Subtotal.Sub(res.Totals.Discount)),
		"line totals %s must sum to %s", sum, res.Totals.Subtotal.Sub(res.Totals.Discount))

	lineEvents := repo.eventsOfType(models.EventTypeOrderLineCreated)
	created := repo.eventsOfType(models.EventTypeOrderCreated)
	assert.Len(t, lineEvents, 3)
	require.Len(t, created, 1)
	for _, e := range append(lineEvents, created...) {
		assert.Equal(t, res.OrderID, e.AggregateID)
	}

	evt, ok := created[0].Payload.(models.OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", evt.CustomerName)
	assert.Equal(t, "1 Main St, Austin, TX 78701", evt.ShippingAddress)
	assert.Len(t, evt.Items, 3)
	assert.True(t, evt.Total.Equal(res.Totals.Total))
}

func TestOrderWriter_NoDiscountKeepsLineTotals(t *testing.T) {
	repo := newFakeRepo()
	p := product("p1", "10")
	p.WeightPrices = map[string]decimal.Decimal{"5g": dec("42")}

	res, err := NewOrderWriter().Write(context.Background(), repo, writerInput(
		models.CartItem{ProductID: "p1", Quantity: 2, Weight: "5g", Product: p},
	))
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Equal(t, "42.00", res.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "84.00", res.Lines[0].LineTotal.StringFixed(2))
	assert.False(t, res.Lines[0].DiscountPercent.Valid)
	assert.Empty(t, res.Lines[0].DiscountCode)
}

func TestOrderWriter_Rejects(t *testing.T) {
	repo := newFakeRepo()
	w := NewOrderWriter()

	_, err := w.Write(context.Background(), repo, writerInput())
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = w.Write(context.Background(), repo, writerInput(models.CartItem{ProductID: "gone", Quantity: 1}))
	assert.ErrorIs(t, err, ErrProductUnavailable)

	assert.Empty(t, repo.orders)
	assert.Empty(t, repo.outbox)
}
