package scoring

import "strings"

// minContainmentLength is the shortest normalized answer that may match by
// substring containment. Shorter answers (option letters, single digits)
// must match exactly.
const minContainmentLength = 3

// IsCorrect reports whether a submitted answer matches the key answer.
//
// Both sides are normalized first; an empty side never matches. An exact
// match wins. Otherwise the submission may contain the key answer (extra
// words typed around a gap-fill) or the key answer may contain the
// submission, but only when the contained side is at least
// minContainmentLength characters long.
//
// Containment can accept an answer that is a substring of a different,
// unrelated answer in the same key. That trade-off is accepted.
func IsCorrect(submitted, correct string) bool {
	s := Normalize(submitted)
	c := Normalize(correct)
	if s == "" || c == "" {
		return false
	}

	if s == c {
		return true
	}
	if runeLen(c) >= minContainmentLength && strings.Contains(s, c) {
		return true
	}
	if runeLen(s) >= minContainmentLength && strings.Contains(c, s) {
		return true
	}
	return false
}
