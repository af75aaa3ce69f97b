// Package activity defines behavioural events reported to the backend for
// reminder and retention logic.
package activity

// Type names an activity.
type Type string

const (
	BotStarted     Type = "bot_started"
	CatalogViewed  Type = "catalog_viewed"
	ProductViewed  Type = "product_viewed"
	AddedToCart    Type = "added_to_cart"
	CheckoutBegun  Type = "checkout_started"
	OrderCreated   Type = "order_created"
	OrderCompleted Type = "order_completed"
)

// Event is a single activity record. Data is free-form.
type Event struct {
	UserID int64
	Type   Type
	Data   map[string]string
}
