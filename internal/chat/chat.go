// Package chat holds transport-neutral message types shared by the
// conversation layer, the notification fan-out and the chat adapters.
package chat

import (
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// Button is a single inline keyboard button. Exactly one of Action or URL is
// expected to be set.
type Button struct {
	Text   string
	Action string
	URL    string
}

// ActionButton returns a button that triggers the given action when pressed.
func ActionButton(text string, action ...string) Button {
	return Button{Text: text, Action: strings.Join(action, ":")}
}

// LinkButton returns a button that opens url.
func LinkButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Message is an HTML-formatted text with an optional inline keyboard.
type Message struct {
	Text     string
	Keyboard [][]Button
}

// Row is a convenience constructor for one keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Reply is a response to a single inbound event.
type Reply struct {
	Message

	// Edit replaces the message the event originated from instead of sending
	// a new one. Ignored for text events.
	Edit bool
	// Notice is a short popup text answering a button press.
	Notice string
	// Alert shows Notice as a modal alert instead of a toast.
	Alert bool
}

// NoticeOnly reports whether the reply carries only a button-press answer.
func (r Reply) NoticeOnly() bool {
	return r.Text == "" && r.Notice != ""
}

// Money formats an amount in dollars with two decimals.
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Escape makes s safe for an HTML formatted message.
func Escape(s string) string {
	return html.EscapeString(s)
}
