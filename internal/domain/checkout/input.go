package checkout

import (
	"strings"

	"github.com/xenking/shopbot/internal/domain/promo"
)

// Input is an event fed into Transition.
type Input interface {
	input()
}

type (
	// Text is a free-text answer for the current step.
	Text struct{ Value string }
	// Skip skips the optional step Field.
	Skip struct{ Field State }
	// Payment selects a payment method.
	Payment struct{ Method PaymentMethod }
	// EnterPromo opens the promo code side branch.
	EnterPromo struct{}
	// PromoApplied stores a code the backend accepted.
	PromoApplied struct{ Discount promo.Discount }
	// PromoRejected returns from the promo branch without a change.
	PromoRejected struct{}
	// BackToConfirm leaves the promo branch.
	BackToConfirm struct{}
	// Submitted marks the order as placed.
	Submitted struct{}
	// Cancel abandons the checkout.
	Cancel struct{}
)

func (Text) input()          {}
func (Skip) input()          {}
func (Payment) input()       {}
func (EnterPromo) input()    {}
func (PromoApplied) input()  {}
func (PromoRejected) input() {}
func (BackToConfirm) input() {}
func (Submitted) input()     {}
func (Cancel) input()        {}

var skipTokens = map[string]struct{}{
	"skip":       {},
	"-":          {},
	"no":         {},
	"none":       {},
	"пропустить": {},
	"нет":        {},
}

// IsSkipToken reports whether text is a recognized skip keyword.
func IsSkipToken(text string) bool {
	_, ok := skipTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// Normalize turns free text received in state into an Input. Skip keywords
// become Skip only for optional steps.
func Normalize(state State, text string) Input {
	if state.Optional() && IsSkipToken(text) {
		return Skip{Field: state}
	}
	return Text{Value: text}
}
