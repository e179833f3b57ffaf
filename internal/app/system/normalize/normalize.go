// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email lowercases and trims an email address so lookups and unique
// indexes agree on a single canonical form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role canonicalizes a role string to uppercase (OWNER, EDITOR, VIEWER,
// USER, ADMIN). Parsing and validation happen elsewhere.
func Role(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Reaction canonicalizes a reaction value to uppercase (LIKE, DISLIKE).
func Reaction(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IMDbID trims whitespace around an IMDb identifier (e.g. "tt0111161").
// IMDb ids are case-sensitive lowercase by convention, so only trim.
func IMDbID(s string) string {
	return strings.TrimSpace(s)
}

// QueryParam trims a free-form query parameter, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
