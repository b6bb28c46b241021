// Package filter implements keyword matching of feed items.
package filter

import "strings"

// Scope selects which parts of an item are searched.
type Scope int

const (
	// ScopeAll searches the title and the content.
	ScopeAll Scope = iota
	// ScopeTitle searches the title only.
	ScopeTitle
)

// Item is the text of a feed entry to be matched against search terms.
type Item struct {
	Title   string
	Content string
}

// ScopeFor picks the scope for a whole feed from its first entry: feeds are
// assumed to either always or never carry content.
func ScopeFor(firstHasContent bool) Scope {
	if firstHasContent {
		return ScopeAll
	}
	return ScopeTitle
}

// Match reports whether any term occurs in the item, case-insensitively.
// Blank terms are ignored, so an item never matches an empty term list.
func Match(item Item, terms []string, scope Scope) bool {
	title := strings.ToLower(item.Title)
	content := ""
	if scope == ScopeAll {
		content = strings.ToLower(item.Content)
	}

	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(title, term) {
			return true
		}
		if content != "" && strings.Contains(content, term) {
			return true
		}
	}
	return false
}
