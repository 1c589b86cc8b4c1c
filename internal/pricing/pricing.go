// Package pricing holds the money rules shared by the cart, checkout and
// order writer: shipping tiers, discount application and cent conversion.
package pricing

import (
	"github.com/shopspring/decimal"
)

// SmallOrderMaxItems is the largest item count that still ships at the small-order rate.
const SmallOrderMaxItems = 5

var (
	smallOrderShipping = decimal.RequireFromString("9.99")
	largeOrderShipping = decimal.RequireFromString("25.00")
	hundred            = decimal.NewFromInt(100)
)

// Line is the priced view of one cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals is the checkout summary shown to the customer.
type Totals struct {
	ItemCount       int             `json:"itemCount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Discount        decimal.Decimal `json:"discount"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
}

// ShippingFor returns the flat shipping price for an item count.
func ShippingFor(itemCount int) decimal.Decimal {
	if itemCount <= SmallOrderMaxItems {
		return smallOrderShipping
	}
	return largeOrderShipping
}

// Subtotal sums the lines and counts the items.
func Subtotal(lines []Line) (decimal.Decimal, int) {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
		count += l.Quantity
	}
	return subtotal, count
}

// DiscountAmount applies percent once to amount, rounded to cents.
func DiscountAmount(amount, percent decimal.Decimal) decimal.Decimal {
	if percent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	return amount.Mul(percent).Div(hundred).Round(2)
}

// Compute builds the totals: (subtotal - discount) + shipping.
func Compute(lines []Line, discountPercent decimal.Decimal) Totals {
	subtotal, count := Subtotal(lines)
	discount := DiscountAmount(subtotal, discountPercent)
	shipping := ShippingFor(count)
	return Totals{
		ItemCount:       count,
		Subtotal:        subtotal.Round(2),
		DiscountPercent: discountPercent,
		Discount:        discount,
		Shipping:        shipping,
		Total:           subtotal.Sub(discount).Add(shipping).Round(2),
	}
}

// AllocateDiscount spreads a single aggregate discount over the lines.
// Each line is discounted proportionally and rounded to cents; the last
// line absorbs the rounding remainder so the results sum exactly to the
// discounted subtotal.
func AllocateDiscount(lines []Line, discountPercent decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(lines))
	if len(lines) == 0 {
		return out
	}
	subtotal, _ := Subtotal(lines)
	target := subtotal.Sub(DiscountAmount(subtotal, discountPercent)).Round(2)

	factor := decimal.NewFromInt(1)
	if discountPercent.GreaterThan(decimal.Zero) {
		factor = hundred.Sub(decimal.Min(discountPercent, hundred)).Div(hundred)
	}

	allocated := decimal.Zero
	for i, l := range lines {
		if i == len(lines)-1 {
			out[i] = target.Sub(allocated)
			break
		}
		out[i] = l.Total().Mul(factor).Round(2)
		allocated = allocated.Add(out[i])
	}
	return out
}

// ToCents converts a dollar amount to integer cents for the payment gateway.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer cents back to a dollar amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
