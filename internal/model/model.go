// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

const (
	// FeedPageSize is the number of feeds returned by a paginated listing.
	FeedPageSize = 10

	// RecencyReset is how far back last_updated is set when a feed is created
	// or its search terms change.
	RecencyReset = 30 * 24 * time.Hour

	// LinkRetention is how long a delivery record suppresses redelivery.
	LinkRetention = 15 * 24 * time.Hour
)

// User is a chat that talks to the bot. Notifications go only to active users.
type User struct {
	ID       int64
	Active   bool
	LastSent time.Time
}

// FeedType tells the scanner how to look for new items of a feed.
type FeedType string

// Supported feed types. FeedTypeAny is only meaningful as a listing filter.
const (
	FeedTypeAny  FeedType = ""
	FeedTypeRSS  FeedType = "rss"
	FeedTypeHTML FeedType = "html"
)

// ParseFeedType converts a stored or user supplied value into a FeedType.
func ParseFeedType(s string) (FeedType, error) {
	switch FeedType(s) {
	case FeedTypeRSS, FeedTypeHTML:
		return FeedType(s), nil
	}
	return "", fmt.Errorf("unknown feed type %q", s)
}

// Feed is a per-user subscription to an RSS endpoint or a site-scoped search.
//
// Key is the durable identifier. Index is the position of the feed in the
// listing that produced it and must not be used to address the feed later.
type Feed struct {
	Index       int
	Key         int64
	UserID      int64
	Link        string
	Type        FeedType
	SearchTerms []string
	LastUpdated time.Time
}

// DeliveryRecord marks an article link as already delivered to a user.
type DeliveryRecord struct {
	UserID int64
	Link   string
	SentAt time.Time
}

// Entry is a single item returned by the feed fetch capability.
type Entry struct {
	Title      string
	Link       string
	Content    string
	HasContent bool
	Published  *time.Time
	Updated    *time.Time
}

// Timestamp returns the published time of the entry, falling back to the
// updated time. ok is false when the entry carries neither.
func (e Entry) Timestamp() (t time.Time, ok bool) {
	switch {
	case e.Published != nil:
		return *e.Published, true
	case e.Updated != nil:
		return *e.Updated, true
	}
	return time.Time{}, false
}

// Notification is one new item found for a user during a scan cycle.
//
// Horizon is the last_updated value the feed moves to once every item found
// for it in the same cycle has been delivered.
type Notification struct {
	UserID   int64
	FeedLink string
	Link     string
	Title    string
	Horizon  time.Time
}
