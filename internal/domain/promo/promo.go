// Package promo defines remotely validated promo codes and the single formula
// used to derive order totals from a cart subtotal and a discount.
package promo

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes Value percent off the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// ErrInvalidCode is returned when the backend rejects a promo code.
var ErrInvalidCode = errors.New("invalid promo code")

// ParseDiscountType maps a backend discount type to DiscountType. Unknown and
// empty values fall back to DiscountPercentage.
func ParseDiscountType(s string) DiscountType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "amount", "fixed_amount":
		return DiscountFixed
	default:
		return DiscountPercentage
	}
}

// Discount is a resolved promo code as stored in a checkout session.
type Discount struct {
	Code  string
	Type  DiscountType
	Value decimal.Decimal
}

// Validation is the backend answer for a promo code lookup.
type Validation struct {
	Valid    bool
	Discount Discount
	Message  string
}

// NormalizeCode trims and uppercases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
