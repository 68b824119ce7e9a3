package scoring

import (
	"sort"
	"strconv"
	"strings"
)

// AnswerKey maps a question number ("1".."N") to its canonical answer.
type AnswerKey map[string]string

// Answers maps a question number to the candidate's raw text.
type Answers map[string]string

// ScoreResult is a derived, recomputable score for one section.
type ScoreResult struct {
	RawCorrectCount int     `json:"raw_correct_count"`
	Total           int     `json:"total"`
	Percentage      float64 `json:"percentage"`
	Band            float64 `json:"band"`
}

// QuestionNumber parses a question-number key. Keys that are not positive
// integers are malformed and report ok == false.
func QuestionNumber(key string) (n int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Len returns the number of well-formed questions in the key.
func (k AnswerKey) Len() int {
	return len(indexByNumber(k))
}

// indexByNumber indexes a question map by number, skipping malformed keys.
// When two keys name the same number ("7" and "07") the lexically smaller
// key wins so the result is deterministic.
func indexByNumber(m map[string]string) map[int]string {
	keys := make([]string, 0, len(m))
	for q := range m {
		keys = append(keys, q)
	}
	sort.Strings(keys)

	out := make(map[int]string, len(keys))
	for _, q := range keys {
		n, ok := QuestionNumber(q)
		if !ok {
			continue
		}
		if _, dup := out[n]; dup {
			continue
		}
		out[n] = m[q]
	}
	return out
}

// Score counts the submitted answers that match the key and converts the
// count to a band with the given table.
//
// The key is authoritative: only its question numbers are iterated, and the
// total is the number of well-formed key entries. Answers for questions the
// key does not have are ignored; missing answers are incorrect.
func Score(submitted Answers, key AnswerKey, table BandTable) ScoreResult {
	answers := indexByNumber(submitted)

	correct, total := 0, 0
	for n, want := range indexByNumber(key) {
		total++
		if IsCorrect(answers[n], want) {
			correct++
		}
	}

	return NewScoreResult(correct, total, table)
}

// NewScoreResult builds a ScoreResult from a raw count, clamping the count
// into [0, total].
func NewScoreResult(rawCorrect, total int, table BandTable) ScoreResult {
	if total < 0 {
		total = 0
	}
	if rawCorrect < 0 {
		rawCorrect = 0
	}
	if rawCorrect > total {
		rawCorrect = total
	}

	res := ScoreResult{
		RawCorrectCount: rawCorrect,
		Total:           total,
	}
	if total > 0 {
		res.Percentage = float64(rawCorrect) / float64(total) * 100
	}
	res.Band = BandFromScore(rawCorrect, total, table)
	return res
}
