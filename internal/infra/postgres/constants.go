package postgres

import "strings"

// escapeLikePattern escapes special characters in LIKE/ILIKE patterns.
// SECURITY: % and _ in user search input would otherwise act as wildcards.
func escapeLikePattern(s string) string {
	// Backslash first, it is the escape character.
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// wrapLikePattern wraps a search term with % wildcards after escaping.
// Use this for substring search: wrapLikePattern("foo") returns "%foo%"
func wrapLikePattern(s string) string {
	return "%" + escapeLikePattern(s) + "%"
}
