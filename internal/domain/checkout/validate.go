package checkout

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError reports a rejected answer. The session is left unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type rule struct {
	field string
	tag   string
	upper bool
}

var rules = map[State]rule{
	StateCollectingFirstName: {field: "first_name", tag: "required,min=2"},
	StateCollectingLastName:  {field: "last_name", tag: "required,min=2"},
	StateCollectingStreet:    {field: "street", tag: "required,min=5"},
	StateCollectingCity:      {field: "city", tag: "required,min=2"},
	StateCollectingState:     {field: "state", tag: "required,min=2", upper: true},
	StateCollectingZip:       {field: "zip", tag: "required,len=5,number"},
	StateCollectingPhone:     {field: "phone", tag: "required,startswith=+,min=10"},
	StateCollectingApartment: {field: "apartment", tag: "required"},
	StateCollectingCompany:   {field: "company", tag: "required"},
}

// clean trims and validates text for the step at state.
func clean(state State, text string) (string, error) {
	r, ok := rules[state]
	if !ok {
		return "", ErrUnexpectedInput
	}
	v := strings.TrimSpace(text)
	if r.upper {
		v = strings.ToUpper(v)
	}
	if err := validate.Var(v, r.tag); err != nil {
		var reason string
		if fe, ok := err.(validator.ValidationErrors); ok && len(fe) > 0 {
			reason = msgForTag(fe[0])
		} else {
			reason = err.Error()
		}
		return "", &ValidationError{Field: r.field, Reason: reason}
	}
	return v, nil
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "number":
		return "must contain digits only"
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
