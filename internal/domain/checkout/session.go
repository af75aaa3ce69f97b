package checkout

import (
	"strings"

	"github.com/xenking/shopbot/internal/domain/promo"
)

// PaymentMethod is the payment label chosen by the user. Money movement
// happens outside of this system.
type PaymentMethod string

const (
	PaymentZelle  PaymentMethod = "zelle"
	PaymentCrypto PaymentMethod = "crypto"
)

// PaymentMethods lists accepted methods in display order.
var PaymentMethods = []PaymentMethod{PaymentZelle, PaymentCrypto}

// ParsePaymentMethod returns the method named by s.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PaymentMethods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// Shipping is the address collected during checkout. Nil optional fields
// were skipped.
type Shipping struct {
	FirstName string
	LastName  string
	Street    string
	City      string
	State     string
	Zip       string
	Phone     *string
	Apartment *string
	Company   *string
}

// FullName joins first and last name.
func (s Shipping) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Lines renders the address as display lines.
func (s Shipping) Lines() []string {
	street := s.Street
	if s.Apartment != nil {
		street += ", " + *s.Apartment
	}
	lines := []string{s.FullName()}
	if s.Company != nil {
		lines = append(lines, *s.Company)
	}
	lines = append(lines, street, s.City+", "+s.State+" "+s.Zip)
	if s.Phone != nil {
		lines = append(lines, *s.Phone)
	}
	return lines
}

// Session is a user's checkout progress. It has value semantics: Transition
// returns a new Session and never mutates its argument.
type Session struct {
	// ID identifies one checkout attempt. It stays stable across order
	// submission retries.
	ID       string
	State    State
	Shipping Shipping
	Payment  PaymentMethod
	Promo    *promo.Discount
}

// NewSession returns a session positioned at the first step.
func NewSession() Session {
	return Session{State: StateCollectingFirstName}
}
