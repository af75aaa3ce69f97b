package checkout

// State is a checkout step.
type State string

const (
	StateIdle                State = "idle"
	StateCollectingFirstName State = "collecting_first_name"
	StateCollectingLastName  State = "collecting_last_name"
	StateCollectingStreet    State = "collecting_street"
	StateCollectingCity      State = "collecting_city"
	StateCollectingState     State = "collecting_state"
	StateCollectingZip       State = "collecting_zip"
	StateCollectingPhone     State = "collecting_phone"
	StateCollectingApartment State = "collecting_apartment"
	StateCollectingCompany   State = "collecting_company"
	StateSelectingPayment    State = "selecting_payment"
	StateConfirmingOrder     State = "confirming_order"
	StateEnteringPromocode   State = "entering_promocode"
	StateSubmitted           State = "submitted"
	StateCancelled           State = "cancelled"
)

// next holds the linear part of the graph: each text step advances to the
// following one.
var next = map[State]State{
	StateCollectingFirstName: StateCollectingLastName,
	StateCollectingLastName:  StateCollectingStreet,
	StateCollectingStreet:    StateCollectingCity,
	StateCollectingCity:      StateCollectingState,
	StateCollectingState:     StateCollectingZip,
	StateCollectingZip:       StateCollectingPhone,
	StateCollectingPhone:     StateCollectingApartment,
	StateCollectingApartment: StateCollectingCompany,
	StateCollectingCompany:   StateSelectingPayment,
}

// IsTerminal reports whether no further input is accepted.
func (s State) IsTerminal() bool {
	return s == StateSubmitted || s == StateCancelled
}

// IsActive reports whether a checkout is in progress.
func (s State) IsActive() bool {
	return s != StateIdle && s != "" && !s.IsTerminal()
}

// Optional reports whether the step may be skipped.
func (s State) Optional() bool {
	switch s {
	case StateCollectingPhone, StateCollectingApartment, StateCollectingCompany:
		return true
	default:
		return false
	}
}

// CollectsText reports whether the step expects a free-text answer.
func (s State) CollectsText() bool {
	_, ok := next[s]
	return ok || s == StateEnteringPromocode
}

// ParseState maps a string back to a known State.
func ParseState(s string) (State, bool) {
	st := State(s)
	if _, ok := next[st]; ok {
		return st, true
	}
	switch st {
	case StateIdle, StateSelectingPayment, StateConfirmingOrder,
		StateEnteringPromocode, StateSubmitted, StateCancelled:
		return st, true
	}
	return "", false
}

func (s State) String() string {
	return string(s)
}
