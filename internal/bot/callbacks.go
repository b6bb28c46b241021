package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedbot/internal/model"
)

const (
	actionList = "list"
	actionSub  = "sub"
)

func (b *Bot) handleCallback(ctx context.Context, ev Event) {
	b.ackCallback(ev.CallbackID)

	action, value, ok := strings.Cut(ev.CallbackData, ":")
	if !ok {
		return
	}

	b.log.Info("callback", "action", action, "value", value, "chat_id", ev.ChatID, "user_id", ev.UserID)

	switch action {
	case actionList:
		b.handleList(ctx, ev.ChatID, value)
	case actionSub:
		switch value {
		case "on":
			b.handleSubscribe(ctx, ev.ChatID, true)
		case "off":
			b.handleSubscribe(ctx, ev.ChatID, false)
		}
	}
}

func (b *Bot) ackCallback(id string) {
	if id == "" {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func startKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start notifications", actionSub+":on"),
			tgbotapi.NewInlineKeyboardButtonData("Stop notifications", actionSub+":off"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("My feeds", actionList+":0"),
		),
	)
	return &kb
}

// pageKeyboard returns Prev/Next buttons around a page of count feeds
// starting at start, or nil when there is nowhere to go.
func pageKeyboard(start, count int) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if start > 0 {
		prev := max(start-model.FeedPageSize, 0)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("« Prev", fmt.Sprintf("%s:%d", actionList, prev)))
	}
	if count == model.FeedPageSize {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next »", fmt.Sprintf("%s:%d", actionList, start+count)))
	}
	if len(row) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}
