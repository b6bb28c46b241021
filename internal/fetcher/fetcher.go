// Package fetcher downloads and parses RSS and Atom feeds.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"feedbot/internal/model"
)

const (
	userAgent   = "FeedBot/1.0"
	maxBodySize = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads and parses a feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Entries fetches the feed at url and converts its items to entries in feed order.
func (f *Fetcher) Entries(ctx context.Context, url string) ([]model.Entry, error) {
	feed, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	entries := make([]model.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, ToEntry(item))
	}
	return entries, nil
}

// ToEntry converts a parsed feed item. Content is the full item body when
// the feed carries one (content:encoded, Atom content).
func ToEntry(item *gofeed.Item) model.Entry {
	e := model.Entry{
		Title:      item.Title,
		Link:       item.Link,
		Content:    item.Content,
		HasContent: item.Content != "",
	}
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		e.Published = &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		e.Updated = &t
	}
	return e
}
