// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"feedbot/internal/model"
)

// FeedStore holds per-user feed configurations.
type FeedStore interface {
	// ListFeeds returns the user's feeds of the given type ordered by key.
	// Unless all is set, at most model.FeedPageSize feeds starting at start
	// are returned. FeedTypeAny matches every type.
	ListFeeds(ctx context.Context, userID int64, start int, all bool, feedType model.FeedType) ([]model.Feed, error)
	GetFeed(ctx context.Context, userID, key int64) (*model.Feed, error)
	FeedExists(ctx context.Context, userID int64, link string) (bool, error)
	CreateFeed(ctx context.Context, terms []string, userID int64, link string, feedType model.FeedType) error
	DeleteFeed(ctx context.Context, userID int64, link string) error
	UpdateSearchTerms(ctx context.Context, terms []string, userID int64, link string) error
	UpdateLastUpdated(ctx context.Context, userID int64, link string, ts time.Time) error
}

// LinkStore is the ledger of links already delivered to users.
type LinkStore interface {
	IsSent(ctx context.Context, userID int64, link string) (bool, error)
	SaveLink(ctx context.Context, rec model.DeliveryRecord) error
	// ClearOldLinks deletes records sent before now minus model.LinkRetention
	// and reports how many were removed.
	ClearOldLinks(ctx context.Context, now time.Time) (int64, error)
}

// UserStore tracks users and whether they want notifications.
type UserStore interface {
	AddUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SetActive(ctx context.Context, id int64) error
	SetInactive(ctx context.Context, id int64) error
	ListActiveUsers(ctx context.Context) ([]int64, error)
	SetLastSent(ctx context.Context, id int64, ts time.Time) error
}

// Storage is the interface for all persistence operations.
type Storage interface {
	FeedStore
	LinkStore
	UserStore

	Close() error
}
