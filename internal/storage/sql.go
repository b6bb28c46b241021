package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"feedbot/internal/model"
)

// defaultFrequency is the users.frequency value written for new users. The
// column is kept for schema compatibility and is not read.
const defaultFrequency = 21600

// dialect captures the differences between the supported SQL databases.
type dialect struct {
	// positional renders the n-th (1-based) placeholder; nil keeps "?".
	positional func(n int) string
	// timeArg converts a timestamp into a bind argument.
	timeArg func(t time.Time) any
}

// SQL implements Storage on top of database/sql. Every operation borrows a
// connection from the pool for the duration of a single statement or
// transaction, so the scanner and the front end never share a handle.
type SQL struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQL(db *sql.DB, d dialect) *SQL {
	return &SQL{db: db, dialect: d, now: time.Now}
}

// Close closes the underlying database connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

// ListFeeds returns the user's feeds ordered by key.
func (s *SQL) ListFeeds(ctx context.Context, userID int64, start int, all bool, feedType model.FeedType) ([]model.Feed, error) {
	if !all && start < 0 {
		return nil, nil
	}

	query := `SELECT key, user_id, feed_link, feed_type, search_string, last_updated
		 FROM feeds WHERE user_id = ?`
	args := []any{userID}
	if feedType != model.FeedTypeAny {
		query += ` AND feed_type = ?`
		args = append(args, string(feedType))
	}
	query += ` ORDER BY key`

	offset := 0
	if !all {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, model.FeedPageSize, start)
		offset = start
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var feeds []model.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		f.Index = offset + len(feeds)
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

// GetFeed returns a single feed of the user by its key.
func (s *SQL) GetFeed(ctx context.Context, userID, key int64) (*model.Feed, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT key, user_id, feed_link, feed_type, search_string, last_updated
		 FROM feeds WHERE user_id = ? AND key = ?`), userID, key,
	)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %d: %w", key, ErrNotFound)
	}
	return f, err
}

// FeedExists checks whether the user already has a feed with this link.
func (s *SQL) FeedExists(ctx context.Context, userID int64, link string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM feeds WHERE user_id = ? AND feed_link = ?`),
		userID, link,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check feed: %w", err)
	}
	return count > 0, nil
}

// CreateFeed inserts a new feed with last_updated set model.RecencyReset in
// the past. A feed with the same link for the same user is rejected with a
// ValidationError; the unique index makes this hold under concurrent calls.
func (s *SQL) CreateFeed(ctx context.Context, terms []string, userID int64, link string, feedType model.FeedType) error {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return &ValidationError{Field: "search_terms", Reason: "at least one search term is required"}
	}
	if strings.TrimSpace(link) == "" {
		return &ValidationError{Field: "feed_link", Reason: "link is required"}
	}
	if _, err := model.ParseFeedType(string(feedType)); err != nil {
		return &ValidationError{Field: "feed_type", Reason: err.Error()}
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO feeds (user_id, feed_link, feed_type, search_string, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, feed_link) DO NOTHING`),
		userID, link, string(feedType), JoinTerms(terms), s.timeArg(s.now().Add(-model.RecencyReset)),
	)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &ValidationError{Field: "feed_link", Reason: fmt.Sprintf("feed %s already exists", link)}
	}
	return nil
}

// DeleteFeed removes the user's feed with this link. Deleting a missing feed is a no-op.
func (s *SQL) DeleteFeed(ctx context.Context, userID int64, link string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM feeds WHERE user_id = ? AND feed_link = ?`), userID, link,
	)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return nil
}

// UpdateSearchTerms replaces the feed's search terms and resets its
// last_updated to model.RecencyReset in the past.
func (s *SQL) UpdateSearchTerms(ctx context.Context, terms []string, userID int64, link string) error {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return &ValidationError{Field: "search_terms", Reason: "at least one search term is required"}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE feeds SET search_string = ?, last_updated = ? WHERE user_id = ? AND feed_link = ?`),
		JoinTerms(terms), s.timeArg(s.now().Add(-model.RecencyReset)), userID, link,
	)
	if err != nil {
		return fmt.Errorf("update search terms: %w", err)
	}
	return nil
}

// UpdateLastUpdated sets the feed's recency horizon. Callers pass
// non-decreasing timestamps; the store does not check.
func (s *SQL) UpdateLastUpdated(ctx context.Context, userID int64, link string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE feeds SET last_updated = ? WHERE user_id = ? AND feed_link = ?`),
		s.timeArg(ts), userID, link,
	)
	if err != nil {
		return fmt.Errorf("update last updated: %w", err)
	}
	return nil
}

// IsSent checks whether the link was already delivered to the user.
func (s *SQL) IsSent(ctx context.Context, userID int64, link string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM links WHERE user_id = ? AND article_link = ?`),
		userID, link,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return count > 0, nil
}

// SaveLink appends a delivery record. Duplicates are accepted.
func (s *SQL) SaveLink(ctx context.Context, rec model.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO links (user_id, article_link, sent) VALUES (?, ?, ?)`),
		rec.UserID, rec.Link, s.timeArg(rec.SentAt),
	)
	if err != nil {
		return fmt.Errorf("save link: %w", err)
	}
	return nil
}

// ClearOldLinks deletes delivery records older than model.LinkRetention.
func (s *SQL) ClearOldLinks(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM links WHERE sent < ?`), s.timeArg(now.Add(-model.LinkRetention)),
	)
	if err != nil {
		return 0, fmt.Errorf("clear old links: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AddUser registers a user as inactive. Adding an existing user is a no-op.
func (s *SQL) AddUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, frequency, feed_active, last_sent) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`),
		id, defaultFrequency, false, s.timeArg(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a single user by id.
func (s *SQL) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	var lastSent dbTime
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, feed_active, last_sent FROM users WHERE id = ?`), id,
	).Scan(&u.ID, &u.Active, &lastSent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.LastSent = lastSent.Time
	return &u, nil
}

// SetActive turns notifications on for the user.
func (s *SQL) SetActive(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, true)
}

// SetInactive turns notifications off for the user.
func (s *SQL) SetInactive(ctx context.Context, id int64) error {
	return s.setActive(ctx, id, false)
}

func (s *SQL) setActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET feed_active = ? WHERE id = ?`), active, id,
	)
	if err != nil {
		return fmt.Errorf("update user active: %w", err)
	}
	return nil
}

// ListActiveUsers returns the ids of users who want notifications.
func (s *SQL) ListActiveUsers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id FROM users WHERE feed_active = ? ORDER BY id`), true,
	)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetLastSent records when the user last received notifications.
func (s *SQL) SetLastSent(ctx context.Context, id int64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET last_sent = ? WHERE id = ?`), s.timeArg(ts), id,
	)
	if err != nil {
		return fmt.Errorf("update last sent: %w", err)
	}
	return nil
}

// rebind rewrites "?" placeholders into the dialect's positional form.
func (s *SQL) rebind(query string) string {
	if s.dialect.positional == nil {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.positional(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) timeArg(t time.Time) any {
	if s.dialect.timeArg == nil {
		return t.UTC()
	}
	return s.dialect.timeArg(t)
}

func dollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFeed(row scannable) (*model.Feed, error) {
	var f model.Feed
	var feedType, search string
	var lastUpdated dbTime
	err := row.Scan(&f.Key, &f.UserID, &f.Link, &feedType, &search, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	f.Type = model.FeedType(feedType)
	f.SearchTerms = ParseTerms(search)
	f.LastUpdated = lastUpdated.Time
	return &f, nil
}
