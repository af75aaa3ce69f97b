// Package cart implements the per-user in-memory shopping cart.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/shopbot/internal/domain/catalog"
)

// Item is a single cart line. Name and Price are captured when the product is
// first added and are not refreshed from the catalog afterwards.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Total returns Price × Quantity.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Store keeps one cart per user. Every entry has Quantity >= 1.
//
// The mutex only protects the user map; callers are expected to serialize
// operations for the same user (see conversation.Dispatcher).
type Store struct {
	mu    sync.Mutex
	carts map[int64][]Item
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{carts: make(map[int64][]Item)}
}

// Add puts qty units of p into the user's cart. An existing entry has its
// quantity increased and keeps the price captured when it was first added.
// Non-positive quantities are treated as 1.
func (s *Store) Add(user int64, p catalog.Product, qty int) {
	if qty <= 0 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[user]
	for i := range items {
		if items[i].ProductID == p.ID {
			items[i].Quantity += qty
			return
		}
	}
	s.carts[user] = append(items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  qty,
	})
}

// UpdateQuantity sets the quantity of a product already in the cart. A
// quantity <= 0 removes the entry. It reports whether the product was found.
func (s *Store) UpdateQuantity(user int64, productID string, qty int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[user]
	for i := range items {
		if items[i].ProductID != productID {
			continue
		}
		if qty <= 0 {
			s.carts[user] = append(items[:i:i], items[i+1:]...)
		} else {
			items[i].Quantity = qty
		}
		return true
	}
	return false
}

// Remove deletes a product from the cart. Removing an absent product is a no-op.
func (s *Store) Remove(user int64, productID string) {
	s.UpdateQuantity(user, productID, 0)
}

// Clear empties the user's cart.
func (s *Store) Clear(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, user)
}

// Get returns a copy of the cart entries in insertion order. The result is
// never nil.
func (s *Store) Get(user int64) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[user]
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Item returns a single entry of the user's cart.
func (s *Store) Item(user int64, productID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.carts[user] {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Total returns the sum of line totals, zero for an empty cart.
func (s *Store) Total(user int64) decimal.Decimal {
	return Sum(s.Get(user))
}

// Count returns the total number of units in the cart.
func (s *Store) Count(user int64) int {
	n := 0
	for _, it := range s.Get(user) {
		n += it.Quantity
	}
	return n
}

// Sum returns the sum of line totals of items.
func Sum(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total())
	}
	return sum
}
