package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/ielts-mock/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// Incomplete builds the message sent when a candidate leaves mid-test.
func Incomplete(r *model.TestResult) model.Notification {
	var b strings.Builder
	b.WriteString("*IELTS Test Incomplete*\n")
	writeCandidate(&b, r)
	fmt.Fprintf(&b, "Date: %s\n\n", r.CreatedAt.Format(timeLayout))

	fmt.Fprintf(&b, "*Reading*\nQuestions Answered: %d/%d\n\n",
		answered(r.Reading.Answers), r.Reading.Score.Total)
	fmt.Fprintf(&b, "*Listening*\nQuestions Answered: %d/%d\n\n",
		answered(r.Listening.Answers), r.Listening.Score.Total)
	fmt.Fprintf(&b, "*Writing*\nTask 1 Words: %s\nTask 2 Words: %s\n\n",
		wordsOrNA(r.Writing.Task1Words), wordsOrNA(r.Writing.Task2Words))
	b.WriteString("*Note:* This test was not completed. The candidate left the test.")

	return newNotification(model.NotificationIncomplete, r.CandidateID, b.String())
}

// Result builds the message sent when a candidate finishes.
func Result(r *model.TestResult) model.Notification {
	var b strings.Builder
	b.WriteString("*IELTS Test Results*\n")
	writeCandidate(&b, r)
	b.WriteString("\n")

	fmt.Fprintf(&b, "*Reading Test %d*: %s\n", r.ReadingTestID, sectionLine(r.Reading.Score.RawCorrectCount, r.Reading.Score.Total, r.Reading.Score.Percentage, r.Reading.Score.Band))
	fmt.Fprintf(&b, "*Listening Test %d*: %s\n\n", r.ListeningTestID, sectionLine(r.Listening.Score.RawCorrectCount, r.Listening.Score.Total, r.Listening.Score.Percentage, r.Listening.Score.Band))

	fmt.Fprintf(&b, "*Writing*:\nTask 1 (%d words):\n%q\n\nTask 2 (%d words):\n%q\n\n",
		r.Writing.Task1Words, r.Writing.Task1, r.Writing.Task2Words, r.Writing.Task2)

	fmt.Fprintf(&b, "*Overall Band Score*: %.1f\n\n", r.OverallBand)
	fmt.Fprintf(&b, "*Completed*: %s", r.CreatedAt.Format(timeLayout))

	return newNotification(model.NotificationResult, r.CandidateID, b.String())
}

// Rescore builds the message sent after an administrator scores a result.
func Rescore(r *model.TestResult) model.Notification {
	var b strings.Builder
	b.WriteString("IELTS Test Results\n")
	writeCandidate(&b, r)
	fmt.Fprintf(&b, "Date: %s\n\n", r.CreatedAt.Format(timeLayout))

	fmt.Fprintf(&b, "Reading\nScore: %d/%d\nBand: %.1f\n\n",
		r.Reading.Score.RawCorrectCount, r.Reading.Score.Total, r.Reading.Score.Band)
	fmt.Fprintf(&b, "Listening\nScore: %d/%d\nBand: %.1f\n\n",
		r.Listening.Score.RawCorrectCount, r.Listening.Score.Total, r.Listening.Score.Band)
	fmt.Fprintf(&b, "Writing\nTask 1 Words: %d\nTask 2 Words: %d\nBand: %.1f\n\n",
		r.Writing.Task1Words, r.Writing.Task2Words, r.Writing.Band)
	fmt.Fprintf(&b, "Overall Band Score: %.1f", r.OverallBand)

	return newNotification(model.NotificationRescore, r.CandidateID, b.String())
}

func newNotification(kind model.NotificationKind, candidateID, text string) model.Notification {
	return model.Notification{
		ID:          uuid.New(),
		Kind:        kind,
		CandidateID: candidateID,
		Text:        text,
		CreatedAt:   time.Now(),
	}
}

func writeCandidate(b *strings.Builder, r *model.TestResult) {
	name := r.CandidateName
	if name == "" {
		name = r.CandidateID
	}
	fmt.Fprintf(b, "Candidate: %s\n", name)
	if r.CandidateNumber != "" {
		fmt.Fprintf(b, "Candidate Number: %s\n", r.CandidateNumber)
	}
}

func sectionLine(raw, total int, pct, band float64) string {
	return fmt.Sprintf("%d/%d (%.0f%%) - Band %.1f", raw, total, pct, band)
}

func answered(a map[string]string) int {
	n := 0
	for _, v := range a {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

func wordsOrNA(n int) string {
	if n == 0 {
		return "NA"
	}
	return fmt.Sprint(n)
}
