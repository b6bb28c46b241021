package storage

import "strings"

const termSeparator = ", "

// JoinTerms serializes search terms into the stored search_string form.
//
// Terms containing a comma do not survive a JoinTerms/ParseTerms round trip:
// the comma is read back as a separator.
func JoinTerms(terms []string) string {
	return strings.Join(terms, termSeparator)
}

// ParseTerms splits a stored or user supplied search string on commas,
// trimming whitespace and dropping empty tokens.
func ParseTerms(s string) []string {
	var terms []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

func normalizeTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
