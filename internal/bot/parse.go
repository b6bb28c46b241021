package bot

import (
	"fmt"
	"strconv"
	"strings"

	"feedbot/internal/storage"
)

// FeedArgs holds the parsed arguments of /addrss and /addsite.
type FeedArgs struct {
	Link  string
	Terms []string
}

// ParseFeedArgs parses "<link> <term>[, <term>...]". Link and terms are lower-cased.
func ParseFeedArgs(args string) (FeedArgs, error) {
	link, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	if link == "" {
		return FeedArgs{}, fmt.Errorf("link is required")
	}
	terms := parseTermList(rest)
	if len(terms) == 0 {
		return FeedArgs{}, fmt.Errorf("at least one search term is required")
	}
	return FeedArgs{Link: strings.ToLower(link), Terms: terms}, nil
}

// ParseKeyArg extracts a numeric feed key from a command argument string.
func ParseKeyArg(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, fmt.Errorf("feed key is required")
	}
	key, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || key <= 0 {
		return 0, fmt.Errorf("invalid feed key %q", fields[0])
	}
	return key, nil
}

// ParseKeyAndText splits "<key> <text>" and requires both parts.
func ParseKeyAndText(args string) (int64, string, error) {
	first, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	key, err := ParseKeyArg(first)
	if err != nil {
		return 0, "", err
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return 0, "", fmt.Errorf("missing value after feed key")
	}
	return key, rest, nil
}

// ParseTermNumber parses "<key> <n>" where n is a 1-based term position.
func ParseTermNumber(args string) (int64, int, error) {
	key, rest, err := ParseKeyAndText(args)
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(strings.Fields(rest)[0])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("invalid term number %q", rest)
	}
	return key, n, nil
}

// ParseListStart parses the optional start position of /list.
func ParseListStart(args string) (int, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, nil
	}
	start, err := strconv.Atoi(fields[0])
	if err != nil || start < 0 {
		return 0, fmt.Errorf("invalid start %q", fields[0])
	}
	return start, nil
}

// normalizeSite reduces a site to the host form used in site: queries.
func normalizeSite(site string) string {
	site = strings.ToLower(strings.TrimSpace(site))
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	return strings.TrimRight(site, "/")
}

func parseTermList(s string) []string {
	terms := storage.ParseTerms(strings.ToLower(s))
	return dedupTerms(terms)
}

func dedupTerms(terms []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
