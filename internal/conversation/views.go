package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xenking/shopbot/internal/chat"
	"github.com/xenking/shopbot/internal/domain/cart"
	"github.com/xenking/shopbot/internal/domain/catalog"
	"github.com/xenking/shopbot/internal/domain/checkout"
	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/domain/promo"
	"github.com/xenking/shopbot/internal/domain/user"
)

var (
	menuButton    = chat.ActionButton("🏠 Main menu", ActionMainMenu)
	cartButton    = chat.ActionButton("🛒 Cart", ActionCart)
	catalogButton = chat.ActionButton("📦 Catalog", ActionCatalog)
	ordersButton  = chat.ActionButton("📋 My orders", ActionMyOrders)
	cancelButton  = chat.ActionButton("❌ Cancel", ActionCancel)
)

// MainMenuKeyboard is the keyboard attached to menu-like messages.
func MainMenuKeyboard() [][]chat.Button {
	return [][]chat.Button{
		chat.Row(catalogButton, cartButton),
		chat.Row(ordersButton),
		chat.Row(
			chat.ActionButton("❓ Help", ActionHelp),
			chat.ActionButton("💬 Contact support", ActionContactAdmin),
		),
	}
}

func welcomeView(u user.User) chat.Message {
	return chat.Message{
		Text: fmt.Sprintf("👋 Welcome, <b>%s</b>!\n\nBrowse the catalog, fill your cart and check out right here in the chat.",
			chat.Escape(u.DisplayName())),
		Keyboard: MainMenuKeyboard(),
	}
}

func mainMenuView() chat.Message {
	return chat.Message{
		Text:     "🛍️ <b>Main menu</b>\n\nChoose an action:",
		Keyboard: MainMenuKeyboard(),
	}
}

func helpView() chat.Message {
	return chat.Message{
		Text: "❓ <b>Help</b>\n\n" +
			"/start - main menu\n" +
			"/cart - your cart\n" +
			"/orders - your orders\n" +
			"/cancel - cancel checkout\n" +
			"/help - this message\n\n" +
			"Questions about an order? Tap <b>Contact support</b>.",
		Keyboard: [][]chat.Button{
			chat.Row(chat.ActionButton("💬 Contact support", ActionContactAdmin)),
			chat.Row(menuButton),
		},
	}
}

func unknownCommandView(cmd string) chat.Message {
	m := helpView()
	m.Text = fmt.Sprintf("Unknown command /%s.\n\n", chat.Escape(cmd)) + m.Text
	return m
}

func apologyView() chat.Message {
	return chat.Message{
		Text:     "😔 Something went wrong. Please try again.",
		Keyboard: [][]chat.Button{chat.Row(menuButton)},
	}
}

func unavailableView() chat.Message {
	return chat.Message{
		Text:     "😔 " + unavailableNotice,
		Keyboard: [][]chat.Button{chat.Row(menuButton)},
	}
}

func cancelledView() chat.Message {
	return chat.Message{
		Text:     "❌ Checkout cancelled. Your cart is still saved.",
		Keyboard: [][]chat.Button{chat.Row(cartButton, menuButton)},
	}
}

func emptyCatalogView() chat.Message {
	return chat.Message{
		Text:     "😔 No categories available yet",
		Keyboard: [][]chat.Button{chat.Row(menuButton)},
	}
}

func emptyCategoryView() chat.Message {
	return chat.Message{
		Text:     "😔 No products in this category yet",
		Keyboard: [][]chat.Button{chat.Row(chat.ActionButton("🔙 Categories", ActionCatalog)), chat.Row(menuButton)},
	}
}

func categoriesView(cats []catalog.Category) chat.Message {
	kb := make([][]chat.Button, 0, len(cats)+1)
	for _, c := range cats {
		kb = append(kb, chat.Row(chat.ActionButton("📂 "+c.Name, ActionCategory, c.ID)))
	}
	kb = append(kb, chat.Row(cartButton, menuButton))
	return chat.Message{Text: "📂 <b>Choose a category:</b>", Keyboard: kb}
}

func productsView(products []catalog.Product) chat.Message {
	kb := make([][]chat.Button, 0, len(products)+2)
	for _, p := range products {
		kb = append(kb, chat.Row(chat.ActionButton(
			fmt.Sprintf("%s - %s", p.Name, chat.Money(p.Price)),
			ActionProduct, p.ID,
		)))
	}
	kb = append(kb,
		chat.Row(chat.ActionButton("🔙 Categories", ActionCatalog)),
		chat.Row(cartButton, menuButton),
	)
	return chat.Message{Text: "🛍️ <b>Products:</b>", Keyboard: kb}
}

func productView(p catalog.Product) chat.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>%s</b>\n\n", chat.Escape(p.Name))
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", chat.Escape(p.Description))
	}
	fmt.Fprintf(&b, "💰 Price: <b>%s</b>", chat.Money(p.Price))

	back := chat.ActionButton("🔙 Categories", ActionCatalog)
	if p.CategoryID != "" {
		back = chat.ActionButton("🔙 Back", ActionCategory, p.CategoryID)
	}
	return chat.Message{
		Text: b.String(),
		Keyboard: [][]chat.Button{
			chat.Row(chat.ActionButton("🛒 Add to cart", ActionAddToCart, p.ID)),
			chat.Row(back, cartButton),
		},
	}
}

func cartView(items []cart.Item) chat.Message {
	if len(items) == 0 {
		return chat.Message{
			Text:     "🛒 Your cart is empty",
			Keyboard: [][]chat.Button{chat.Row(catalogButton), chat.Row(menuButton)},
		}
	}

	var b strings.Builder
	b.WriteString("🛒 <b>Your cart:</b>\n\n")
	kb := make([][]chat.Button, 0, len(items)+3)
	for _, it := range items {
		fmt.Fprintf(&b, "• %s\n  %d × %s = %s\n",
			chat.Escape(it.Name), it.Quantity, chat.Money(it.Price), chat.Money(it.Total()))
		kb = append(kb, chat.Row(chat.ActionButton("✏️ "+it.Name, ActionCartItem, it.ProductID)))
	}
	fmt.Fprintf(&b, "\n💰 Total: <b>%s</b>", chat.Money(cart.Sum(items)))

	kb = append(kb,
		chat.Row(chat.ActionButton("💳 Checkout", ActionCheckout)),
		chat.Row(chat.ActionButton("🗑 Clear cart", ActionClearCart), catalogButton),
		chat.Row(menuButton),
	)
	return chat.Message{Text: b.String(), Keyboard: kb}
}

func cartItemView(it cart.Item) chat.Message {
	var minus chat.Button
	if it.Quantity > 1 {
		minus = chat.ActionButton("➖", ActionCartQty, it.ProductID, strconv.Itoa(it.Quantity-1))
	} else {
		minus = chat.ActionButton("➖", ActionRemove, it.ProductID)
	}
	row := []chat.Button{minus, chat.ActionButton(strconv.Itoa(it.Quantity), ActionCartItem, it.ProductID)}
	if it.Quantity < maxQuantity {
		row = append(row, chat.ActionButton("➕", ActionCartQty, it.ProductID, strconv.Itoa(it.Quantity+1)))
	}

	return chat.Message{
		Text: fmt.Sprintf("📝 <b>%s</b>\n\n💰 Price: %s\n📦 Quantity: %d\n💵 Subtotal: %s",
			chat.Escape(it.Name), chat.Money(it.Price), it.Quantity, chat.Money(it.Total())),
		Keyboard: [][]chat.Button{
			row,
			chat.Row(chat.ActionButton("🗑 Remove", ActionRemove, it.ProductID)),
			chat.Row(chat.ActionButton("🔙 Cart", ActionCart)),
		},
	}
}

// checkoutSteps lists the text steps in prompt order.
var checkoutSteps = []checkout.State{
	checkout.StateCollectingFirstName,
	checkout.StateCollectingLastName,
	checkout.StateCollectingStreet,
	checkout.StateCollectingCity,
	checkout.StateCollectingState,
	checkout.StateCollectingZip,
	checkout.StateCollectingPhone,
	checkout.StateCollectingApartment,
	checkout.StateCollectingCompany,
}

var prompts = map[checkout.State]string{
	checkout.StateCollectingFirstName: "👤 Enter your <b>first name</b>:",
	checkout.StateCollectingLastName:  "👤 Enter your <b>last name</b>:",
	checkout.StateCollectingStreet:    "🏠 Enter your <b>street address</b> (e.g. 123 Main St):",
	checkout.StateCollectingCity:      "🏙 Enter your <b>city</b>:",
	checkout.StateCollectingState:     "🗺 Enter your <b>state</b> (e.g. CA):",
	checkout.StateCollectingZip:       "📮 Enter your <b>ZIP code</b> (5 digits):",
	checkout.StateCollectingPhone:     "📞 Enter your <b>phone number</b> starting with + (e.g. +12025550123):",
	checkout.StateCollectingApartment: "🚪 Enter your <b>apartment or suite</b>:",
	checkout.StateCollectingCompany:   "🏢 Enter your <b>company name</b>:",
}

func promptView(st checkout.State) chat.Message {
	n := 0
	for i, s := range checkoutSteps {
		if s == st {
			n = i + 1
			break
		}
	}

	text := fmt.Sprintf("📝 <b>Shipping details</b> (step %d of %d)\n\n%s", n, len(checkoutSteps), prompts[st])
	var kb [][]chat.Button
	if st.Optional() {
		text += "\n\nOptional: tap <b>Skip</b> or send \"-\"."
		kb = append(kb, chat.Row(chat.ActionButton("⏭ Skip", ActionSkip, st.String())))
	}
	kb = append(kb, chat.Row(cancelButton))
	return chat.Message{Text: text, Keyboard: kb}
}

func invalidAnswerView(err *checkout.ValidationError, st checkout.State) chat.Message {
	m := promptView(st)
	m.Text = fmt.Sprintf("⚠️ %s %s.\n\n", fieldLabel(err.Field), chat.Escape(err.Reason)) + m.Text
	return m
}

func fieldLabel(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return "Value"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func paymentView() chat.Message {
	kb := make([][]chat.Button, 0, len(checkout.PaymentMethods)+1)
	for _, m := range checkout.PaymentMethods {
		kb = append(kb, chat.Row(chat.ActionButton(paymentLabel(m), ActionPayment, m.String())))
	}
	kb = append(kb, chat.Row(cancelButton))
	return chat.Message{Text: "💳 <b>Choose a payment method:</b>", Keyboard: kb}
}

func paymentLabel(m checkout.PaymentMethod) string {
	switch m {
	case checkout.PaymentZelle:
		return "💵 Zelle"
	case checkout.PaymentCrypto:
		return "💎 Crypto"
	default:
		return strings.ToUpper(m.String())
	}
}

func confirmationView(items []cart.Item, sess checkout.Session) chat.Message {
	var b strings.Builder
	b.WriteString("📋 <b>Order confirmation</b>\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "• %s × %d = %s\n", chat.Escape(it.Name), it.Quantity, chat.Money(it.Total()))
	}

	b.WriteString("\n📍 <b>Ship to:</b>\n")
	for _, line := range sess.Shipping.Lines() {
		b.WriteString(chat.Escape(line))
		b.WriteByte('\n')
	}

	totals := promo.Apply(cart.Sum(items), sess.Promo)
	fmt.Fprintf(&b, "\n💰 Subtotal: %s\n", chat.Money(totals.Subtotal))
	if d := sess.Promo; d != nil {
		fmt.Fprintf(&b, "🎫 Promo: <b>%s</b> (%s)\n", chat.Escape(d.Code), discountLabel(*d))
		fmt.Fprintf(&b, "💸 Discount: -%s\n", chat.Money(totals.Discount))
	}
	fmt.Fprintf(&b, "💵 <b>Total: %s</b>\n", chat.Money(totals.Total))
	fmt.Fprintf(&b, "💳 Payment: %s", strings.ToUpper(sess.Payment.String()))

	promoText := "🎫 Enter promo code"
	if sess.Promo != nil {
		promoText = "🎫 Change promo code"
	}
	return chat.Message{
		Text: b.String(),
		Keyboard: [][]chat.Button{
			chat.Row(chat.ActionButton("✅ Confirm order", ActionConfirmOrder)),
			chat.Row(chat.ActionButton(promoText, ActionEnterPromocode)),
			chat.Row(cancelButton),
		},
	}
}

func discountLabel(d promo.Discount) string {
	if d.Type == promo.DiscountFixed {
		return "-" + chat.Money(d.Value)
	}
	return "-" + d.Value.String() + "%"
}

func promoPromptView() chat.Message {
	return chat.Message{
		Text:     "🎫 Send your <b>promo code</b>:",
		Keyboard: [][]chat.Button{chat.Row(chat.ActionButton("◀️ Back to order", ActionBackToConfirm))},
	}
}

func promoAppliedView(d promo.Discount) chat.Message {
	return chat.Message{Text: fmt.Sprintf("✅ Promo code <b>%s</b> applied: %s", chat.Escape(d.Code), discountLabel(d))}
}

func promoRejectedView(code, reason string) chat.Message {
	text := fmt.Sprintf("❌ Promo code <b>%s</b> is not valid.", chat.Escape(code))
	if reason != "" {
		text += "\n" + chat.Escape(reason)
	}
	return chat.Message{Text: text}
}

func promoUnavailableView() chat.Message {
	return chat.Message{Text: "😔 Promo codes cannot be checked right now. You can continue without one."}
}

func placedView(p order.Placed) chat.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>Order #%s created!</b>\n\n", chat.Escape(p.ID))

	kb := [][]chat.Button{chat.Row(ordersButton), chat.Row(menuButton)}
	switch {
	case p.AwaitsRouting():
		fmt.Fprintf(&b, "💵 <b>Amount due: %s</b>\n\n", chat.Money(p.Total))
		b.WriteString("⏳ <b>Please wait for payment details from our manager.</b>\n\n")
		b.WriteString("📱 We will prepare personal Zelle details for your order.\n")
		b.WriteString("🕐 This usually takes a few minutes.")

	case p.PaymentMethod == checkout.PaymentZelle:
		r := p.Routing
		b.WriteString("💵 <b>Payment via Zelle</b>\n")
		fmt.Fprintf(&b, "💰 Amount due: <b>%s</b>\n\n", chat.Money(p.Total))
		b.WriteString("📋 <b>Your payment details:</b>\n")
		fmt.Fprintf(&b, "📧 Email: <code>%s</code>\n", chat.Escape(orUnset(r.Email)))
		fmt.Fprintf(&b, "📱 Phone: <code>%s</code>\n", chat.Escape(orUnset(r.Phone)))
		fmt.Fprintf(&b, "👤 Name: <code>%s</code>\n\n", chat.Escape(orUnset(r.Name)))
		b.WriteString("📝 <b>Put this in the transfer memo:</b>\n")
		fmt.Fprintf(&b, "<code>Order #%s</code>\n\n", chat.Escape(p.ID))
		b.WriteString("🕐 The order is processed once the payment is confirmed.")

	default:
		b.WriteString("💎 <b>Payment via crypto</b>\n")
		fmt.Fprintf(&b, "💰 Amount due: <b>%s</b>\n\n", chat.Money(p.Total))
		b.WriteString("🔗 A payment link will be sent to you shortly.\n")
		b.WriteString("📱 You will be notified when the payment is confirmed.")
	}
	return chat.Message{Text: b.String(), Keyboard: kb}
}

func orUnset(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func noOrdersView() chat.Message {
	return chat.Message{
		Text:     "📋 You have no orders yet",
		Keyboard: [][]chat.Button{chat.Row(catalogButton), chat.Row(menuButton)},
	}
}

func ordersView(orders []order.Summary) chat.Message {
	var b strings.Builder
	b.WriteString("📋 <b>Your orders:</b>\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n%s <b>#%s</b> %s", statusEmoji(o.Status), chat.Escape(o.ID), chat.Money(o.Total))
		if o.Status != "" {
			fmt.Fprintf(&b, " · %s", chat.Escape(o.Status))
		}
		if o.Items > 0 {
			fmt.Fprintf(&b, " · %d items", o.Items)
		}
		if !o.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "\n   %s", o.CreatedAt.Format("Jan 2, 2006 15:04"))
		}
	}
	return chat.Message{Text: b.String(), Keyboard: [][]chat.Button{chat.Row(menuButton)}}
}

func statusEmoji(status string) string {
	switch strings.ToLower(status) {
	case "pending":
		return "⏳"
	case "confirmed", "paid":
		return "✅"
	case "processing", "preparing":
		return "👨‍🍳"
	case "shipped", "delivering":
		return "🚚"
	case "delivered", "completed":
		return "📦"
	case "cancelled", "canceled":
		return "❌"
	default:
		return "•"
	}
}

func supportSubjectView() chat.Message {
	return chat.Message{
		Text: "💬 <b>Contact support</b>\n\n" +
			"Enter the <b>subject</b> of your request (3 to 100 characters).\n\n" +
			"For example: <i>Order delivery</i>, <i>Payment question</i>.",
		Keyboard: [][]chat.Button{chat.Row(chat.ActionButton("❌ Cancel", ActionCancelSupport))},
	}
}

func supportMessageView(subject string) chat.Message {
	return chat.Message{
		Text: fmt.Sprintf("📝 Subject: <b>%s</b>\n\nNow describe your question (10 to 1000 characters).",
			chat.Escape(subject)),
		Keyboard: [][]chat.Button{chat.Row(chat.ActionButton("❌ Cancel", ActionCancelSupport))},
	}
}

func supportInvalidView(field string, minLen, maxLen int) chat.Message {
	return chat.Message{
		Text:     fmt.Sprintf("⚠️ %s must be between %d and %d characters. Please try again.", field, minLen, maxLen),
		Keyboard: [][]chat.Button{chat.Row(chat.ActionButton("❌ Cancel", ActionCancelSupport))},
	}
}

func supportSentView(subject, message string) chat.Message {
	return chat.Message{
		Text: fmt.Sprintf("✅ <b>Your request was sent!</b>\n\n📝 Subject: %s\n💬 %s\n\nWe will reply here as soon as possible.",
			chat.Escape(subject), chat.Escape(message)),
		Keyboard: [][]chat.Button{chat.Row(menuButton)},
	}
}

func supportFailedView() chat.Message {
	return chat.Message{
		Text:     "😔 Your request could not be delivered. Please try again later.",
		Keyboard: [][]chat.Button{chat.Row(menuButton)},
	}
}

func supportCancelledView() chat.Message {
	return chat.Message{
		Text:     "❌ Support request cancelled.",
		Keyboard: MainMenuKeyboard(),
	}
}
