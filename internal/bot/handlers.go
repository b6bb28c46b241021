package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"feedbot/internal/model"
	"feedbot/internal/storage"
)

const (
	cmdAddRSS  = "addrss"
	cmdAddSite = "addsite"
	cmdList    = "list"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if err := b.store.AddUser(ctx, chatID); err != nil {
		b.log.Error("add user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return
	}
	user, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.log.Error("get user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return
	}
	status := "off. Use /on to start them."
	if user.Active {
		status = "on."
	}
	b.replyWithKeyboard(chatID, `Welcome to Feed Bot!

Follow RSS feeds or whole sites and get a message whenever a new item mentions one of your search terms.

Quick start:
1. /addrss <url> <terms> - follow an RSS feed
2. /addsite <site> <terms> - follow a site through web search
3. /on - start receiving notifications

Use /help for the full command reference.

Notifications are currently `+status, startKeyboard())
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Feeds:
/addrss <url> <term, term...> - follow an RSS feed
/addsite <site> <term, term...> - follow a site through web search
/list [start] - show your feeds, 10 per page
/delfeed <key> - delete a feed

Search terms:
/terms <key> <term, term...> - replace the terms of a feed
/addterm <key> <term> - add a term
/delterm <key> <n> - remove the n-th term

Notifications:
/on - start notifications
/off - stop notifications

Terms are matched case-insensitively against item titles and content.`)
}

func (b *Bot) handleAddRSS(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseFeedArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /addrss <url> <term, term...>")
		return
	}
	if !b.checkNewFeed(ctx, chatID, parsed.Link) {
		return
	}

	entries, err := b.fetcher.Entries(ctx, parsed.Link)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to fetch feed: %v", err))
		return
	}

	if b.createFeed(ctx, chatID, parsed, model.FeedTypeRSS) {
		b.reply(chatID, fmt.Sprintf("RSS feed added: %s (%d items right now)\nSearch terms: %s",
			parsed.Link, len(entries), strings.Join(parsed.Terms, ", ")))
	}
}

func (b *Bot) handleAddSite(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseFeedArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /addsite <site> <term, term...>")
		return
	}
	parsed.Link = normalizeSite(parsed.Link)
	if parsed.Link == "" {
		b.reply(chatID, "Usage: /addsite <site> <term, term...>")
		return
	}
	if !b.checkNewFeed(ctx, chatID, parsed.Link) {
		return
	}

	if b.createFeed(ctx, chatID, parsed, model.FeedTypeHTML) {
		b.reply(chatID, fmt.Sprintf("Site added: %s\nSearch terms: %s",
			parsed.Link, strings.Join(parsed.Terms, ", ")))
	}
}

// checkNewFeed replies and returns false when the user already follows link.
func (b *Bot) checkNewFeed(ctx context.Context, chatID int64, link string) bool {
	exists, err := b.store.FeedExists(ctx, chatID, link)
	if err != nil {
		b.log.Error("check feed", "chat_id", chatID, "feed_link", link, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return false
	}
	if exists {
		b.reply(chatID, fmt.Sprintf("You already follow %s.", link))
		return false
	}
	return true
}

func (b *Bot) createFeed(ctx context.Context, chatID int64, parsed FeedArgs, feedType model.FeedType) bool {
	if err := b.store.AddUser(ctx, chatID); err != nil {
		b.log.Error("add user", "chat_id", chatID, "error", err)
	}
	err := b.store.CreateFeed(ctx, parsed.Terms, chatID, parsed.Link, feedType)
	var ve *storage.ValidationError
	switch {
	case errors.As(err, &ve):
		b.reply(chatID, fmt.Sprintf("Cannot add feed: %s.", ve.Reason))
		return false
	case err != nil:
		b.log.Error("create feed", "chat_id", chatID, "feed_link", parsed.Link, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return false
	}
	b.log.Info("feed added", "chat_id", chatID, "feed_link", parsed.Link, "feed_type", feedType)
	return true
}

func (b *Bot) handleList(ctx context.Context, chatID int64, args string) {
	start, err := ParseListStart(args)
	if err != nil {
		b.reply(chatID, "Usage: /list [start]")
		return
	}

	feeds, err := b.store.ListFeeds(ctx, chatID, start, false, model.FeedTypeAny)
	if err != nil {
		b.log.Error("list feeds", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return
	}

	b.replyWithKeyboard(chatID, FormatFeedList(feeds, start), pageKeyboard(start, len(feeds)))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) {
	key, err := ParseKeyArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /delfeed <key>")
		return
	}

	feed, ok := b.lookupFeed(ctx, chatID, key)
	if !ok {
		return
	}
	if err := b.store.DeleteFeed(ctx, chatID, feed.Link); err != nil {
		b.log.Error("delete feed", "chat_id", chatID, "feed_link", feed.Link, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed #%d %s deleted.", key, feed.Link))
}

func (b *Bot) handleSetTerms(ctx context.Context, chatID int64, args string) {
	key, rest, err := ParseKeyAndText(args)
	terms := parseTermList(rest)
	if err != nil || len(terms) == 0 {
		b.reply(chatID, "Usage: /terms <key> <term, term...>")
		return
	}

	feed, ok := b.lookupFeed(ctx, chatID, key)
	if !ok {
		return
	}
	b.updateTerms(ctx, chatID, feed, terms)
}

func (b *Bot) handleAddTerm(ctx context.Context, chatID int64, args string) {
	key, rest, err := ParseKeyAndText(args)
	added := parseTermList(rest)
	if err != nil || len(added) == 0 {
		b.reply(chatID, "Usage: /addterm <key> <term>")
		return
	}

	feed, ok := b.lookupFeed(ctx, chatID, key)
	if !ok {
		return
	}
	b.updateTerms(ctx, chatID, feed, dedupTerms(append(slices.Clone(feed.SearchTerms), added...)))
}

func (b *Bot) handleDelTerm(ctx context.Context, chatID int64, args string) {
	key, n, err := ParseTermNumber(args)
	if err != nil {
		b.reply(chatID, "Usage: /delterm <key> <n>")
		return
	}

	feed, ok := b.lookupFeed(ctx, chatID, key)
	if !ok {
		return
	}
	if n > len(feed.SearchTerms) {
		b.reply(chatID, fmt.Sprintf("Feed #%d has only %d search terms.", key, len(feed.SearchTerms)))
		return
	}
	if len(feed.SearchTerms) == 1 {
		b.reply(chatID, "A feed needs at least one search term. Use /delfeed to remove the feed.")
		return
	}
	b.updateTerms(ctx, chatID, feed, slices.Delete(slices.Clone(feed.SearchTerms), n-1, n))
}

func (b *Bot) updateTerms(ctx context.Context, chatID int64, feed *model.Feed, terms []string) {
	err := b.store.UpdateSearchTerms(ctx, terms, chatID, feed.Link)
	var ve *storage.ValidationError
	switch {
	case errors.As(err, &ve):
		b.reply(chatID, fmt.Sprintf("Cannot update feed: %s.", ve.Reason))
		return
	case err != nil:
		b.log.Error("update search terms", "chat_id", chatID, "feed_link", feed.Link, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return
	}
	feed.SearchTerms = terms
	b.reply(chatID, FormatTerms(feed))
}

// lookupFeed loads the user's feed by key, replying when it does not exist.
func (b *Bot) lookupFeed(ctx context.Context, chatID, key int64) (*model.Feed, bool) {
	feed, err := b.store.GetFeed(ctx, chatID, key)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Feed #%d not found.", key))
		return nil, false
	}
	if err != nil {
		b.log.Error("get feed", "chat_id", chatID, "key", key, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return nil, false
	}
	return feed, true
}

func (b *Bot) handleSubscribe(ctx context.Context, chatID int64, active bool) {
	if err := b.store.AddUser(ctx, chatID); err != nil {
		b.log.Error("add user", "chat_id", chatID, "error", err)
	}

	var err error
	if active {
		err = b.store.SetActive(ctx, chatID)
	} else {
		err = b.store.SetInactive(ctx, chatID)
	}
	if err != nil {
		b.log.Error("set subscription", "chat_id", chatID, "active", active, "error", err)
		b.reply(chatID, "Something went wrong, please try again later.")
		return
	}

	if active {
		b.reply(chatID, "Notifications are on. New items are checked every few minutes.")
		return
	}
	b.reply(chatID, "Notifications are off. Use /on to resume.")
}
