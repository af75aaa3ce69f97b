package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/chat"
	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/domain/user"
)

// OrderPlaced informs operators about a new order.
func (n *Notifier) OrderPlaced(ctx context.Context, u user.User, p order.Placed) {
	r := n.Broadcast(ctx, FormatOrderPlaced(u, p))
	zctx.From(ctx).Info("Order notification sent",
		zap.String("order_id", p.ID),
		zap.Int("delivered", r.Delivered),
		zap.Int("failed", r.Failed),
	)
}

// SupportRequest forwards a user's support message to operators.
func (n *Notifier) SupportRequest(ctx context.Context, u user.User, subject, message string) Report {
	return n.Broadcast(ctx, FormatSupportRequest(u, subject, message))
}

// FormatOrderPlaced renders the operator summary of an order.
func FormatOrderPlaced(u user.User, p order.Placed) chat.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 <b>New order #%s</b>\n\n", chat.Escape(p.ID))
	b.WriteString(customerLine(u))
	fmt.Fprintf(&b, "💳 Payment: %s\n", strings.ToUpper(p.PaymentMethod.String()))
	fmt.Fprintf(&b, "💰 Total: <b>%s</b>\n", chat.Money(p.Total))
	if p.Promo != nil {
		fmt.Fprintf(&b, "🎫 Promo: %s (-%s)\n", chat.Escape(p.Promo.Code), chat.Money(p.Totals.Discount))
	}

	if len(p.Lines) > 0 {
		b.WriteString("\n<b>Items:</b>\n")
		for _, l := range p.Lines {
			fmt.Fprintf(&b, "• %s × %d\n", chat.Escape(l.Name), l.Quantity)
		}
	}

	b.WriteString("\n<b>Ship to:</b>\n")
	for _, line := range p.Shipping.Lines() {
		b.WriteString(chat.Escape(line))
		b.WriteByte('\n')
	}

	if p.AwaitsRouting() {
		b.WriteString("\n⚠️ <b>Action required:</b> assign Zelle payment details for this customer.")
	}
	return chat.Message{Text: strings.TrimRight(b.String(), "\n")}
}

// FormatSupportRequest renders a support request for operators.
func FormatSupportRequest(u user.User, subject, message string) chat.Message {
	var b strings.Builder
	b.WriteString("🆘 <b>Support request</b>\n\n")
	b.WriteString(customerLine(u))
	fmt.Fprintf(&b, "\n<b>Subject:</b> %s\n\n%s", chat.Escape(subject), chat.Escape(message))
	return chat.Message{Text: b.String()}
}

func customerLine(u user.User) string {
	s := fmt.Sprintf("👤 %s (id <code>%d</code>", chat.Escape(u.DisplayName()), u.ID)
	if u.Username != "" {
		s += ", @" + chat.Escape(u.Username)
	}
	return s + ")\n"
}
