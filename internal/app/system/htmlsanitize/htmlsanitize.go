// internal/app/system/htmlsanitize/htmlsanitize.go
//
// Package htmlsanitize strips markup from user-supplied text before it is
// stored. Review notes and comment bodies are plain text; anything that
// looks like HTML gets reduced to its text content.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes all HTML elements and attributes, keeping text content.
var strict = bluemonday.StrictPolicy()

// PlainText removes all HTML from s and returns the remaining text with
// entities decoded. Leading and trailing whitespace is trimmed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// ContainsMarkup reports whether s appears to contain an HTML tag.
// Lone < or > characters (e.g. "5 < 10") do not count.
func ContainsMarkup(s string) bool {
	open := strings.IndexByte(s, '<')
	if open < 0 {
		return false
	}
	return strings.IndexByte(s[open:], '>') > 0
}
