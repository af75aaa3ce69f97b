package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xenking/shopbot/internal/conversation"
	"github.com/xenking/shopbot/internal/domain/user"
)

// toEvent converts an update into a conversation event. Updates without a
// sender or without anything to act on are dropped.
func toEvent(u tgbotapi.Update) (conversation.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.From == nil {
			return conversation.Event{}, false
		}
		ev := conversation.Event{
			User:       toUser(cq.From),
			ChatID:     cq.From.ID,
			Kind:       conversation.KindAction,
			Action:     conversation.ParseAction(cq.Data),
			CallbackID: cq.ID,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true

	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil || m.From.IsBot {
			return conversation.Event{}, false
		}
		ev := conversation.Event{
			User:      toUser(m.From),
			ChatID:    m.Chat.ID,
			MessageID: m.MessageID,
		}
		switch {
		case m.IsCommand():
			ev.Kind = conversation.KindCommand
			ev.Command = strings.ToLower(m.Command())
		case strings.TrimSpace(m.Text) != "":
			ev.Kind = conversation.KindText
			ev.Text = m.Text
		default:
			return conversation.Event{}, false
		}
		return ev, true

	default:
		return conversation.Event{}, false
	}
}

func toUser(u *tgbotapi.User) user.User {
	return user.User{
		ID:           u.ID,
		Username:     u.UserName,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}
