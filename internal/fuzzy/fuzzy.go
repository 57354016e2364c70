// Package fuzzy provides string similarity scoring for OCR'd and user-typed text.
package fuzzy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Normalize folds case, drops a "#1234" discriminator and keeps only letters
// and digits, so "@-Bryce", "@bryce" and "Bryce#0042" compare equal.
func Normalize(s string) string {
	if i := strings.LastIndexByte(s, '#'); i > 0 {
		s = s[:i]
	}
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity scores two strings in [0,1]. Identical normalized strings score 1;
// otherwise the score is 1 - editDistance/maxLen over normalized runes.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	maxLen := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > maxLen {
		maxLen = n
	}
	d := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(d)/float64(maxLen)
}

// Matches reports whether text is similar to want at or above threshold, or
// contains it after normalization (OCR boxes often carry icon noise).
func Matches(text, want string, threshold float64) bool {
	nt, nw := Normalize(text), Normalize(want)
	if nt == "" || nw == "" {
		return false
	}
	if strings.Contains(nt, nw) {
		return true
	}
	return Similarity(text, want) >= threshold
}
