package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"ozon/parser/internal/domain"
)

// NormalizeURL strips the query string and fragment and ensures exactly one trailing slash.
func NormalizeURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/") + "/"
}

// FilterChildren drops children whose normalized url equals the parent's or repeats an
// earlier sibling's. The first occurrence of every url is kept, in order.
func FilterChildren(parentURL string, children []domain.CategoryRecord) []domain.CategoryRecord {
	if len(children) == 0 {
		return children
	}

	seen := map[string]struct{}{NormalizeURL(parentURL): {}}

	filtered := make([]domain.CategoryRecord, 0, len(children))
	for _, child := range children {
		key := NormalizeURL(child.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		filtered = append(filtered, child)
	}

	return filtered
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
