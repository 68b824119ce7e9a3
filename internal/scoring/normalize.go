// Package scoring turns free-text candidate answers into raw scores and
// IELTS band scores.
//
// Everything in this package is pure: no I/O, no clocks, no logging. Missing
// or malformed answers are never errors, they simply do not score.
package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds an answer into the form used for comparison.
//
// The text is NFKC-normalized and lowercased, every rune that is not a
// letter, digit or whitespace is dropped, whitespace runs collapse to a
// single space and the result is trimmed. Punctuation is removed before
// whitespace is collapsed so that Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}

	return b.String()
}

// runeLen counts characters, not bytes.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
