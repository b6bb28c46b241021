// Package bot is the Telegram front end: it turns user commands into feed
// store operations and delivers notification messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedbot/internal/config"
	"feedbot/internal/model"
	"feedbot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// FeedChecker fetches a feed to confirm it can be parsed before it is saved.
type FeedChecker interface {
	Entries(ctx context.Context, url string) ([]model.Entry, error)
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	cfg     *config.Config
	fetcher FeedChecker
	log     *slog.Logger

	wg sync.WaitGroup
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, checker FeedChecker, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		store:   store,
		cfg:     cfg,
		fetcher: checker,
		log:     log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled
// and every update in progress has been handled. Each update is handled in
// its own goroutine so a slow feed check does not hold up other users.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := decodeUpdate(update)
			if !ok {
				continue
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handle(ctx, ev)
			}()
		}
	}
}

func (b *Bot) handle(ctx context.Context, ev Event) {
	if !b.cfg.IsUserAllowed(ev.UserID) {
		if ev.Kind == EventCallback {
			b.ackCallback(ev.CallbackID)
		}
		b.reply(ev.ChatID, "Access denied.")
		return
	}

	switch ev.Kind {
	case EventCommand:
		b.handleCommand(ctx, ev)
	case EventCallback:
		b.handleCallback(ctx, ev)
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	return b.send(msg)
}

func (b *Bot) send(msg tgbotapi.MessageConfig) error {
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", msg.ChatID, err)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if err := b.send(msg); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, ev Event) {
	chatID := ev.ChatID
	args := ev.Args

	b.log.Debug("command", "cmd", ev.Command, "args", args, "chat_id", chatID)

	switch ev.Command {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdAddRSS:
		b.handleAddRSS(ctx, chatID, args)
	case cmdAddSite:
		b.handleAddSite(ctx, chatID, args)
	case cmdList:
		b.handleList(ctx, chatID, args)
	case "delfeed":
		b.handleDelete(ctx, chatID, args)
	case "terms":
		b.handleSetTerms(ctx, chatID, args)
	case "addterm":
		b.handleAddTerm(ctx, chatID, args)
	case "delterm":
		b.handleDelTerm(ctx, chatID, args)
	case "on":
		b.handleSubscribe(ctx, chatID, true)
	case "off":
		b.handleSubscribe(ctx, chatID, false)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
