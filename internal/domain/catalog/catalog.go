// Package catalog defines the read-only product catalog types sourced from
// the commerce backend.
package catalog

import (
	"github.com/shopspring/decimal"
)

// Product represents a catalog item available for purchase. It is an
// immutable snapshot of the backend state at retrieval time.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	CategoryID  string
	Description string
}

// Category groups products in the catalog.
type Category struct {
	ID   string
	Name string
}

// Filter narrows a product listing. Zero values mean "no restriction".
type Filter struct {
	CategoryID string
	Search     string
	Limit      int
}
