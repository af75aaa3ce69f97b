package conversation

import (
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/shopbot/internal/chat"
)

const (
	staleButton       = "This button is no longer valid"
	unavailableNotice = "The store is temporarily unavailable. Please try again later."
	noCheckoutNotice  = "No checkout in progress"
	emptyCartNotice   = "Your cart is empty, checkout was cancelled"
	maxQuantity       = 99
)

func send(m chat.Message) chat.Reply {
	return chat.Reply{Message: m}
}

func edit(m chat.Message) chat.Reply {
	return chat.Reply{Message: m, Edit: true}
}

func notice(text string) chat.Reply {
	return chat.Reply{Notice: text}
}

func alert(text string) chat.Reply {
	return chat.Reply{Notice: text, Alert: true}
}

func withNotice(r chat.Reply, text string) chat.Reply {
	r.Notice = text
	return r
}

func withAlert(r chat.Reply, text string) chat.Reply {
	r.Notice = text
	r.Alert = true
	return r
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(err, "parse quantity")
	}
	if n > maxQuantity {
		return 0, errors.Errorf("quantity %d exceeds %d", n, maxQuantity)
	}
	return n, nil
}
