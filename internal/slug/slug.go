// Package slug derives canonical URL identifiers from article titles.
package slug

import (
	"strings"

	"github.com/rs/xid"
)

// MaxLength caps slug length; anything longer is truncated.
const MaxLength = 80

// Make normalizes a title into a slug candidate: lowercase, spaces become
// hyphens, and everything that is not an ASCII letter, digit or hyphen is
// dropped (quotes and question marks included). The result is truncated to
// MaxLength. Make is deterministic and never fails, but a title made up
// entirely of stripped characters yields an empty string.
func Make(title string) string {
	lowered := strings.ReplaceAll(strings.ToLower(title), " ", "-")

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		}
	}

	s := b.String()
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	return s
}

// MakeWithFallback behaves like Make but never returns an empty slug: a
// pathological title falls back to a generated identifier so the article
// can still be addressed. Uniqueness is enforced by storage, not here.
func MakeWithFallback(title string) string {
	if s := Make(title); s != "" {
		return s
	}
	return "article-" + xid.New().String()
}
