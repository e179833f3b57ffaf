// internal/app/system/tokens/tokens.go
//
// Package tokens generates the opaque identifiers the app hands out:
// invite tokens, circle share codes, and URL slugs.
package tokens

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// shareAlphabet omits easily-confused characters (0/O, 1/l/I).
const shareAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// ShareCodeLength is the length of generated circle share codes.
const ShareCodeLength = 8

// SlugMaxLen caps the base portion of a generated slug.
const SlugMaxLen = 40

// NewInviteToken returns an opaque single-use invite token.
func NewInviteToken() string {
	return uuid.NewString()
}

// NewShareCode returns a random share code drawn from an unambiguous
// alphabet. Panics if the system's cryptographic random number
// generator fails.
func NewShareCode() string {
	return randomString(ShareCodeLength, shareAlphabet)
}

// Slugify converts a circle name to a URL slug: lowercase, runs of
// non-alphanumerics collapsed to single hyphens, trimmed, capped at
// SlugMaxLen. Names with no usable characters fall back to "circle".
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > SlugMaxLen {
		s = strings.Trim(s[:SlugMaxLen], "-")
	}
	if s == "" {
		return "circle"
	}
	return s
}

// SlugWithSuffix appends a short random suffix to base, used when the
// plain slug is already taken.
func SlugWithSuffix(base string) string {
	return base + "-" + randomString(4, shareAlphabet)
}

// SlugTimeFallback appends a timestamp suffix to base. This is the
// last resort after repeated random-suffix collisions; it is unique for
// all practical purposes.
func SlugTimeFallback(base string, now time.Time) string {
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}

// randomString returns n characters drawn uniformly-ish from alphabet.
// Panics if the system's cryptographic random number generator fails.
func randomString(n int, alphabet string) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = alphabet[int(v)%len(alphabet)]
	}
	return string(out)
}
