// Package checkout implements the per-user checkout flow as an explicit
// state machine over value-typed sessions.
package checkout

import (
	"github.com/go-faster/errors"
)

var (
	// ErrUnexpectedInput is returned when the current step does not accept
	// the input kind.
	ErrUnexpectedInput = errors.New("input not accepted in current state")
	// ErrStaleInput is returned for a skip that targets a step the session
	// already left.
	ErrStaleInput = errors.New("stale input")
	// ErrFinished is returned for input received after the checkout ended.
	ErrFinished = errors.New("checkout finished")
	// ErrUnknownPayment is returned for a payment method outside the
	// accepted set.
	ErrUnknownPayment = errors.New("unknown payment method")
	// ErrNotConfirming is returned when an order is submitted before the
	// checkout reached the confirmation step.
	ErrNotConfirming = errors.New("checkout is not awaiting confirmation")
)

// Transition applies in to s. On error the returned session equals s.
func Transition(s Session, in Input) (Session, error) {
	if s.State.IsTerminal() {
		return s, ErrFinished
	}
	if s.State == StateIdle || s.State == "" {
		return s, ErrUnexpectedInput
	}

	switch in := in.(type) {
	case Cancel:
		out := s
		out.State = StateCancelled
		return out, nil

	case Text:
		if s.State == StateEnteringPromocode {
			// Promo text is resolved remotely and fed back as
			// PromoApplied or PromoRejected.
			return s, ErrUnexpectedInput
		}
		v, err := clean(s.State, in.Value)
		if err != nil {
			return s, err
		}
		return advance(s, v), nil

	case Skip:
		if in.Field != s.State {
			return s, ErrStaleInput
		}
		if !s.State.Optional() {
			return s, ErrUnexpectedInput
		}
		return advance(s, ""), nil

	case Payment:
		if s.State != StateSelectingPayment {
			return s, ErrUnexpectedInput
		}
		m, ok := ParsePaymentMethod(string(in.Method))
		if !ok {
			return s, ErrUnknownPayment
		}
		out := s
		out.Payment = m
		out.State = StateConfirmingOrder
		return out, nil

	case EnterPromo:
		if s.State != StateConfirmingOrder {
			return s, ErrUnexpectedInput
		}
		out := s
		out.State = StateEnteringPromocode
		return out, nil

	case PromoApplied:
		if s.State != StateEnteringPromocode {
			return s, ErrUnexpectedInput
		}
		d := in.Discount
		out := s
		out.Promo = &d
		out.State = StateConfirmingOrder
		return out, nil

	case PromoRejected, BackToConfirm:
		if s.State != StateEnteringPromocode {
			return s, ErrUnexpectedInput
		}
		out := s
		out.State = StateConfirmingOrder
		return out, nil

	case Submitted:
		if s.State != StateConfirmingOrder {
			return s, ErrUnexpectedInput
		}
		out := s
		out.State = StateSubmitted
		return out, nil

	default:
		return s, errors.Errorf("unsupported input %T", in)
	}
}

// advance stores v (or nil for an empty optional value) into the field of
// the current step and moves to the next step.
func advance(s Session, v string) Session {
	out := s
	var opt *string
	if v != "" {
		opt = &v
	}
	switch s.State {
	case StateCollectingFirstName:
		out.Shipping.FirstName = v
	case StateCollectingLastName:
		out.Shipping.LastName = v
	case StateCollectingStreet:
		out.Shipping.Street = v
	case StateCollectingCity:
		out.Shipping.City = v
	case StateCollectingState:
		out.Shipping.State = v
	case StateCollectingZip:
		out.Shipping.Zip = v
	case StateCollectingPhone:
		out.Shipping.Phone = opt
	case StateCollectingApartment:
		out.Shipping.Apartment = opt
	case StateCollectingCompany:
		out.Shipping.Company = opt
	}
	out.State = next[s.State]
	return out
}
