// Package order submits confirmed checkouts to the commerce backend.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shopbot/internal/domain/cart"
	"github.com/xenking/shopbot/internal/domain/checkout"
	"github.com/xenking/shopbot/internal/domain/promo"
)

// Line is a single product line sent with an order.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Request is the payload for creating an order on the backend.
type Request struct {
	// IdempotencyKey is stable for retries of the same checkout.
	IdempotencyKey string
	UserID         int64
	Lines          []Line
	PaymentMethod  checkout.PaymentMethod
	Shipping       checkout.Shipping
	Promocode      string
	Notes          string
	Totals         promo.Totals
}

// Receipt is what the backend returns for a created order. Total is set only
// when the backend reported one.
type Receipt struct {
	ID    string
	Total decimal.NullDecimal
}

// Routing holds the per-user payment details assigned by an operator.
type Routing struct {
	Configured bool
	Email      string
	Phone      string
	Name       string
}

// Placed is a successfully created order as presented to the user.
type Placed struct {
	ID            string
	Total         decimal.Decimal
	Totals        promo.Totals
	PaymentMethod checkout.PaymentMethod
	Lines         []Line
	Shipping      checkout.Shipping
	Promo         *promo.Discount
	// Routing is nil when the payment method needs none or the lookup
	// failed.
	Routing *Routing
}

// AwaitsRouting reports whether an operator still has to assign payment
// details for the order.
func (p Placed) AwaitsRouting() bool {
	return p.PaymentMethod == checkout.PaymentZelle && (p.Routing == nil || !p.Routing.Configured)
}

// Summary is an entry of a user's order history.
type Summary struct {
	ID        string
	Status    string
	Total     decimal.Decimal
	Items     int
	CreatedAt time.Time
}

func linesFromCart(items []cart.Item) []Line {
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = Line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
	}
	return lines
}
