package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestShippingFor(t *testing.T) {
	tests := []struct {
		items    int
		expected string
	}{
		{1, "9.99"},
		{5, "9.99"},
		{6, "25"},
		{40, "25"},
	}

	for _, tt := range tests {
		assert.True(t, dec(tt.expected).Equal(ShippingFor(tt.items)), "items=%d", tt.items)
	}
}

func TestCompute_NoDiscount(t *testing.T) {
	totals := Compute([]Line{{UnitPrice: dec("50"), Quantity: 3}}, decimal.Zero)

	assert.Equal(t, 3, totals.ItemCount)
	assert.True(t, dec("150").Equal(totals.Subtotal))
	assert.True(t, dec("9.99").Equal(totals.Shipping))
	assert.True(t, dec("159.99").Equal(totals.Total), totals.Total.String())
}

func TestCompute_WithDiscount(t *testing.T) {
	totals := Compute([]Line{{UnitPrice: dec("10"), Quantity: 7}}, dec("10"))

	assert.Equal(t, 7, totals.ItemCount)
	assert.True(t, dec("70").Equal(totals.Subtotal))
	assert.True(t, dec("7").Equal(totals.Discount))
	assert.True(t, dec("25").Equal(totals.Shipping))
	assert.True(t, dec("88").Equal(totals.Total), totals.Total.String())
}

func TestCompute_SumsAcrossLines(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("12.50"), Quantity: 2},
		{UnitPrice: dec("3.33"), Quantity: 3},
	}
	totals := Compute(lines, decimal.Zero)

	assert.Equal(t, 5, totals.ItemCount)
	assert.True(t, dec("34.99").Equal(totals.Subtotal), totals.Subtotal.String())
}

func TestAllocateDiscount_SumsToDiscountedSubtotal(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("3.33"), Quantity: 1},
		{UnitPrice: dec("3.33"), Quantity: 1},
		{UnitPrice: dec("3.34"), Quantity: 1},
	}
	percent := dec("15")

	allocated := AllocateDiscount(lines, percent)

	sum := decimal.Zero
	for _, a := range allocated {
		sum = sum.Add(a)
	}
	totals := Compute(lines, percent)
	assert.True(t, totals.Subtotal.Sub(totals.Discount).Equal(sum), "sum=%s", sum)
	assert.True(t, dec("2.83").Equal(allocated[0]), allocated[0].String())
}

func TestAllocateDiscount_NoDiscountKeepsLineTotals(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("19.99"), Quantity: 2},
		{UnitPrice: dec("5"), Quantity: 1},
	}

	allocated := AllocateDiscount(lines, decimal.Zero)

	assert.True(t, dec("39.98").Equal(allocated[0]))
	assert.True(t, dec("5").Equal(allocated[1]))
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(15999), ToCents(dec("159.99")))
	assert.Equal(t, int64(8800), ToCents(dec("88")))
	assert.True(t, dec("159.99").Equal(FromCents(15999)))
}
