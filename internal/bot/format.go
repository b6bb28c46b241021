package bot

import (
	"fmt"
	"strings"

	"feedbot/internal/model"
)

// FormatFeedList formats one page of feeds for display.
func FormatFeedList(feeds []model.Feed, start int) string {
	if len(feeds) == 0 {
		if start > 0 {
			return "No more feeds."
		}
		return "You have no feeds yet. Use /addrss or /addsite to add one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your feeds (%d-%d):\n", start+1, start+len(feeds))
	for _, f := range feeds {
		fmt.Fprintf(&b, "\n#%d [%s] %s\n", f.Key, f.Type, f.Link)
		fmt.Fprintf(&b, "   terms: %s\n", strings.Join(f.SearchTerms, ", "))
	}
	return b.String()
}

// FormatTerms lists the search terms of a feed with their positions.
func FormatTerms(feed *model.Feed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search terms of #%d %s:\n", feed.Key, feed.Link)
	for i, t := range feed.SearchTerms {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	return b.String()
}
