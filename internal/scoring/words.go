package scoring

import "strings"

// WordCount counts whitespace-separated tokens, the way writing task
// lengths are reported to candidates.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
