// Package sanitize turns arbitrary video titles into names that are safe to
// use as files in the staging directory and in Content-Disposition headers.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxLength = 200
	Fallback  = "download"
)

var punctuation = strings.NewReplacer(
	"“", "_", // left double quote
	"”", "_", // right double quote
	"‘", "_", // left single quote
	"’", "_", // right single quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", ".", // ellipsis
	"•", "_", // bullet
	"°", "deg",
)

// Filename returns a filesystem-safe ASCII rendition of title. The result only
// contains [A-Za-z0-9_.-], is never empty, is at most MaxLength bytes long and
// Filename(Filename(x)) == Filename(x).
func Filename(title string) string {
	// Smart punctuation must be mapped before decomposition, otherwise
	// NFKD turns the ellipsis into "..." and the degree sign survives
	// as a non-ASCII rune that is later dropped.
	s := punctuation.Replace(title)

	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	if decomposed, _, err := transform.String(stripMarks, s); err == nil {
		s = decomposed
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case isAllowed(r):
			b.WriteRune(r)
		}
	}

	out := trimUnderscores(collapseUnderscores(b.String()))
	if out == "" {
		return Fallback
	}

	if len(out) > MaxLength {
		out = trimUnderscores(out[:MaxLength])
		if out == "" {
			return Fallback
		}
	}

	return out
}

// isAllowed reports whether r survives sanitization. Everything outside the
// portable filename alphabet is dropped, which covers the reserved characters
// < > : " / \ | ? *, control characters and any remaining non-ASCII.
func isAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteByte(c)
	}

	return b.String()
}

func trimUnderscores(s string) string { return strings.Trim(s, "_") }
