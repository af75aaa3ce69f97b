// Package user describes a chat user as known to the commerce backend.
package user

import "strings"

// User identifies an end user by the chat platform's numeric id.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Username != "":
		return "@" + u.Username
	default:
		return "user"
	}
}
