// Package scanner finds new items across the feeds of all active users.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"feedbot/internal/filter"
	"feedbot/internal/metrics"
	"feedbot/internal/model"
	"feedbot/internal/search"
)

// DefaultWorkers is the number of users scanned concurrently.
const DefaultWorkers = 4

// Store is the persistence the scanner needs.
type Store interface {
	ListFeeds(ctx context.Context, userID int64, start int, all bool, feedType model.FeedType) ([]model.Feed, error)
	IsSent(ctx context.Context, userID int64, link string) (bool, error)
	ClearOldLinks(ctx context.Context, now time.Time) (int64, error)
	ListActiveUsers(ctx context.Context) ([]int64, error)
}

// EntryFetcher downloads the entries of an RSS or Atom feed.
type EntryFetcher interface {
	Entries(ctx context.Context, url string) ([]model.Entry, error)
}

// Scanner runs scan cycles.
type Scanner struct {
	store    Store
	fetcher  EntryFetcher
	searcher search.Searcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	workers  int
	now      func() time.Time
}

// New creates a Scanner. m may be nil.
func New(store Store, fetcher EntryFetcher, searcher search.Searcher, m *metrics.Metrics, logger *slog.Logger) *Scanner {
	return &Scanner{
		store:    store,
		fetcher:  fetcher,
		searcher: searcher,
		metrics:  m,
		logger:   logger,
		workers:  DefaultWorkers,
		now:      time.Now,
	}
}

// SetWorkers changes how many users are scanned concurrently.
func (s *Scanner) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// Scan runs one cycle over every active user and returns the new items,
// grouped by user in the order of the active user list.
//
// Old delivery records are evicted first; a failure there aborts the cycle.
// Failures for a single user are logged and that user's partial results are kept.
func (s *Scanner) Scan(ctx context.Context) ([]model.Notification, error) {
	log := s.logger.With("cycle_id", uuid.NewString())
	start := s.now()

	evicted, err := s.store.ClearOldLinks(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("clear old links: %w", err)
	}
	s.metrics.RecordEvicted(evicted)

	users, err := s.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	log.Info("scan started", "users", len(users), "evicted", evicted)

	results := make([][]model.Notification, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, userID := range users {
		g.Go(func() error {
			notes, err := s.scanUser(gctx, log, userID)
			if err != nil {
				log.Error("scan user failed", "user_id", userID, "error", err)
			}
			results[i] = notes
			return nil
		})
	}
	_ = g.Wait()

	var out []model.Notification
	for _, notes := range results {
		out = append(out, notes...)
	}
	log.Info("scan finished", "items", len(out), "elapsed", s.now().Sub(start))
	return out, ctx.Err()
}

func (s *Scanner) scanUser(ctx context.Context, log *slog.Logger, userID int64) ([]model.Notification, error) {
	log = log.With("user_id", userID)
	u := &userScan{
		Scanner: s,
		log:     log,
		userID:  userID,
		seen:    make(map[string]struct{}),
	}

	rssErr := u.scanRSS(ctx)
	htmlErr := u.scanHTML(ctx)
	return u.notes, errors.Join(rssErr, htmlErr)
}

// userScan accumulates the results of one user within one cycle.
type userScan struct {
	*Scanner
	log    *slog.Logger
	userID int64
	seen   map[string]struct{}
	notes  []model.Notification
}

func (u *userScan) scanRSS(ctx context.Context) error {
	feeds, err := u.store.ListFeeds(ctx, u.userID, 0, true, model.FeedTypeRSS)
	if err != nil {
		return fmt.Errorf("list rss feeds: %w", err)
	}

	for _, feed := range feeds {
		entries, err := u.fetcher.Entries(ctx, feed.Link)
		if err != nil {
			u.log.Warn("fetch feed failed", "feed_link", feed.Link, "error", err)
			u.metrics.RecordFetchError(string(model.FeedTypeRSS))
			continue
		}
		if len(entries) == 0 {
			continue
		}

		scope := filter.ScopeFor(entries[0].HasContent)
		for _, e := range entries {
			ts, ok := e.Timestamp()
			if !ok || !ts.After(feed.LastUpdated) {
				continue
			}
			if !filter.Match(filter.Item{Title: e.Title, Content: e.Content}, feed.SearchTerms, scope) {
				continue
			}
			if err := u.accept(ctx, feed, e.Link, e.Title); err != nil {
				u.log.Error("record match failed", "feed_link", feed.Link, "error", err)
				u.holdHorizon(feed.Link)
				break
			}
		}
	}
	return nil
}

func (u *userScan) scanHTML(ctx context.Context) error {
	feeds, err := u.store.ListFeeds(ctx, u.userID, 0, true, model.FeedTypeHTML)
	if err != nil {
		return fmt.Errorf("list html feeds: %w", err)
	}

	day := u.now()
	for _, feed := range feeds {
	terms:
		for _, term := range feed.SearchTerms {
			links, err := u.searcher.Search(ctx, search.Query{
				Terms: term,
				Site:  feed.Link,
				Day:   day,
				Limit: search.DefaultLimit,
			})
			if err != nil {
				u.log.Warn("search failed", "feed_link", feed.Link, "term", term, "error", err)
				u.metrics.RecordFetchError(string(model.FeedTypeHTML))
				continue
			}
			for _, link := range links {
				if err := u.accept(ctx, feed, link, ""); err != nil {
					u.log.Error("record match failed", "feed_link", feed.Link, "error", err)
					u.holdHorizon(feed.Link)
					break terms
				}
			}
		}
	}
	return nil
}

// accept adds link to the results unless it was already delivered or already
// found in this cycle. The feed's last_updated is left alone; the dispatcher
// moves it to the notification's Horizon after a confirmed send.
func (u *userScan) accept(ctx context.Context, feed model.Feed, link, title string) error {
	if link == "" {
		return nil
	}
	if _, dup := u.seen[link]; dup {
		return nil
	}

	sent, err := u.store.IsSent(ctx, u.userID, link)
	if err != nil {
		return fmt.Errorf("check sent: %w", err)
	}
	if sent {
		return nil
	}

	u.seen[link] = struct{}{}
	u.notes = append(u.notes, model.Notification{
		UserID:   u.userID,
		FeedLink: feed.Link,
		Link:     link,
		Title:    title,
		Horizon:  u.now(),
	})
	return nil
}

// holdHorizon clears the Horizon of the feed's notifications so delivering
// them does not move last_updated past the items that were never checked.
func (u *userScan) holdHorizon(feedLink string) {
	for i := range u.notes {
		if u.notes[i].FeedLink == feedLink {
			u.notes[i].Horizon = time.Time{}
		}
	}
}
