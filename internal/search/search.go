// Package search finds recent pages of a site through a web search engine's
// HTML results page.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const (
	userAgent   = "Mozilla/5.0 (compatible; FeedBot/1.0)"
	maxBodySize = 2 * 1024 * 1024

	// DefaultLimit is the number of results requested per query.
	DefaultLimit = 5
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Query is one site-scoped search.
type Query struct {
	Terms string
	Site  string
	// Day restricts results to pages indexed on that day. Zero means the past day.
	Day   time.Time
	Limit int
}

// Text renders the query string sent to the engine.
func (q Query) Text() string {
	terms := strings.TrimSpace(q.Terms)
	if q.Site == "" {
		return terms
	}
	return terms + " site:" + q.Site
}

// Searcher returns result links for a query.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]string, error)
}

// HTMLSearcher queries a DuckDuckGo compatible HTML endpoint and scrapes the result anchors.
type HTMLSearcher struct {
	client  HTTPClient
	baseURL string
	timeout time.Duration
}

// NewHTMLSearcher creates a searcher for the results page at baseURL.
func NewHTMLSearcher(client HTTPClient, baseURL string) *HTMLSearcher {
	return &HTMLSearcher{
		client:  client,
		baseURL: baseURL,
		timeout: 30 * time.Second,
	}
}

// Search runs the query and returns at most q.Limit distinct absolute links in result order.
func (s *HTMLSearcher) Search(ctx context.Context, q Query) ([]string, error) {
	if strings.TrimSpace(q.Terms) == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	params := base.Query()
	params.Set("q", q.Text())
	params.Set("df", dateFilter(q.Day))
	base.RawQuery = params.Encode()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	return extractLinks(doc, base, limit), nil
}

func extractLinks(doc *goquery.Document, base *url.URL, limit int) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a.result__a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		link, ok := resolveResult(base, href)
		if !ok {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)
		return len(links) < limit
	})
	return links
}

// resolveResult turns a result href into the target URL, unwrapping the
// engine's redirect links (".../l/?uddg=<target>").
func resolveResult(base *url.URL, href string) (string, bool) {
	u, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if target := u.Query().Get("uddg"); target != "" {
		if u, err = url.Parse(target); err != nil {
			return "", false
		}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func dateFilter(day time.Time) string {
	if day.IsZero() {
		return "d"
	}
	d := day.Format("2006-01-02")
	return d + ".." + d
}
