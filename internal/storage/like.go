package storage

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLikePattern escapes LIKE/ILIKE wildcards so user search text matches
// literally. Both backends use backslash as the escape character.
func EscapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern wraps escaped text for a substring match.
func ContainsPattern(s string) string {
	return "%" + EscapeLikePattern(s) + "%"
}
