package promo

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Totals is the breakdown shown to the user and submitted with an order.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Apply computes the order totals for subtotal with an optional discount.
//
//	fixed:      discount = min(value, subtotal)
//	percentage: discount = min(subtotal * value / 100, subtotal)
//	total:      subtotal - discount
//
// Every place that displays or submits a total must go through Apply.
func Apply(subtotal decimal.Decimal, d *Discount) Totals {
	amount := zero
	if d != nil {
		switch d.Type {
		case DiscountFixed:
			amount = decimal.Min(d.Value, subtotal)
		default:
			amount = decimal.Min(subtotal.Mul(d.Value).Div(hundred), subtotal)
		}
	}
	amount = floorAtZero(amount).Round(2)

	return Totals{
		Subtotal: subtotal,
		Discount: amount,
		Total:    floorAtZero(subtotal.Sub(amount)).Round(2),
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
