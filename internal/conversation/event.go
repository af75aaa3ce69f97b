// Package conversation maps chat events onto the cart, checkout and order
// services and renders their outcome as chat replies.
package conversation

import (
	"strings"

	"github.com/xenking/shopbot/internal/domain/user"
)

// Kind is the type of an inbound event.
type Kind uint8

const (
	// KindCommand is a slash command such as /start.
	KindCommand Kind = iota + 1
	// KindText is a free-text message.
	KindText
	// KindAction is a button press.
	KindAction
)

// Action names carried in button data as "name:arg:arg".
const (
	ActionMainMenu       = "main_menu"
	ActionCatalog        = "catalog"
	ActionCategory       = "category"
	ActionProduct        = "product"
	ActionAddToCart      = "add_to_cart"
	ActionCart           = "cart"
	ActionCartItem       = "cart_item"
	ActionCartQty        = "cart_qty"
	ActionRemove         = "remove"
	ActionClearCart      = "clear_cart"
	ActionCheckout       = "checkout"
	ActionSkip           = "skip"
	ActionPayment        = "payment"
	ActionEnterPromocode = "enter_promocode"
	ActionBackToConfirm  = "back_to_confirmation"
	ActionConfirmOrder   = "confirm_order"
	ActionCancel         = "cancel"
	ActionMyOrders       = "my_orders"
	ActionHelp           = "help"
	ActionContactAdmin   = "contact_admin"
	ActionCancelSupport  = "cancel_support"
)

// Commands understood without the leading slash.
const (
	CommandStart  = "start"
	CommandCart   = "cart"
	CommandOrders = "orders"
	CommandHelp   = "help"
	CommandCancel = "cancel"
)

// Action is a parsed button payload.
type Action struct {
	Name string
	Args []string
}

// ParseAction splits button data into name and arguments.
func ParseAction(data string) Action {
	parts := strings.Split(data, ":")
	return Action{Name: parts[0], Args: parts[1:]}
}

// Arg returns the i-th argument or an empty string.
func (a Action) Arg(i int) string {
	if i < len(a.Args) {
		return a.Args[i]
	}
	return ""
}

// Event is a single inbound user interaction.
type Event struct {
	User    user.User
	ChatID  int64
	Kind    Kind
	Command string
	Action  Action
	Text    string

	// MessageID is the message a button press originated from.
	MessageID int
	// CallbackID identifies a button press that must be answered.
	CallbackID string
}

// Resets reports whether the event abandons any flow in progress. Such
// events are applied immediately, even while an earlier event of the same
// user is still being handled.
func (e Event) Resets() bool {
	switch e.Kind {
	case KindAction:
		return e.Action.Name == ActionCancel || e.Action.Name == ActionMainMenu
	case KindCommand:
		return e.Command == CommandCancel || e.Command == CommandStart
	default:
		return false
	}
}
