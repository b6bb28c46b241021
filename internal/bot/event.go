package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventKind tells which kind of user action an Event carries.
type EventKind int

// Event kinds.
const (
	EventCommand EventKind = iota + 1
	EventCallback
)

// Event is a user action decoded from a Telegram update.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64
	Text   string

	// Command events.
	Command string
	Args    string

	// Callback events.
	CallbackID   string
	CallbackData string
}

// decodeUpdate converts an update into an Event. ok is false for updates
// the bot does not act on.
func decodeUpdate(u tgbotapi.Update) (ev Event, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		ev = Event{
			Kind:         EventCallback,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.From != nil {
			ev.UserID = cb.From.ID
			ev.ChatID = cb.From.ID
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
			ev.Text = cb.Message.Text
		}
		return ev, ev.ChatID != 0

	case u.Message != nil && u.Message.IsCommand():
		msg := u.Message
		if msg.Chat == nil {
			return Event{}, false
		}
		ev = Event{
			Kind:    EventCommand,
			ChatID:  msg.Chat.ID,
			UserID:  msg.Chat.ID,
			Text:    msg.Text,
			Command: strings.ToLower(msg.Command()),
			Args:    strings.TrimSpace(msg.CommandArguments()),
		}
		if msg.From != nil {
			ev.UserID = msg.From.ID
		}
		return ev, true
	}
	return Event{}, false
}
