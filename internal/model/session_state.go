package model

import (
	"time"

	"github.com/stemsi/ielts-mock/internal/scoring"
)

// Phase enumerates the states of the current section.
type Phase string

const (
	PhaseNotStarted      Phase = "NOT_STARTED"
	PhaseRunning         Phase = "RUNNING"
	PhaseSectionComplete Phase = "SECTION_COMPLETE"
	PhaseTestComplete    Phase = "TEST_COMPLETE"
)

// WritingAnswers holds the two writing task texts.
type WritingAnswers struct {
	Task1 string `json:"task1"`
	Task2 string `json:"task2"`
}

// SessionAnswers holds everything the candidate has typed so far.
type SessionAnswers struct {
	Listening scoring.Answers `json:"listening"`
	Reading   scoring.Answers `json:"reading"`
	Writing   WritingAnswers  `json:"writing"`
}

// SessionState is the persisted snapshot of an in-progress test.
type SessionState struct {
	CandidateID      string         `json:"candidate_id"`
	CandidateNumber  string         `json:"candidate_number,omitempty"`
	CandidateName    string         `json:"candidate_name,omitempty"`
	ReadingTestID    int            `json:"reading_test_id"`
	ListeningTestID  int            `json:"listening_test_id"`
	CurrentSection   Section        `json:"current_section"`
	SubSectionIndex  int            `json:"sub_section_index"`
	Phase            Phase          `json:"phase"`
	RemainingSeconds int            `json:"remaining_seconds"`
	Answers          SessionAnswers `json:"answers"`
	RefreshCount     int            `json:"refresh_count"`
	// LastPersistedAt is unix milliseconds of the last write.
	LastPersistedAt int64                           `json:"last_persisted_at"`
	Scores          map[Section]scoring.ScoreResult `json:"scores,omitempty"`
	StartedAt       time.Time                       `json:"started_at"`
}

// SectionAnswers returns the question → text map for a scorable section.
func (s *SessionState) SectionAnswers(sec Section) scoring.Answers {
	switch sec {
	case SectionListening:
		return s.Answers.Listening
	case SectionReading:
		return s.Answers.Reading
	}
	return nil
}

// TestIDFor returns the assigned variant for a scorable section.
func (s *SessionState) TestIDFor(sec Section) int {
	switch sec {
	case SectionListening:
		return s.ListeningTestID
	case SectionReading:
		return s.ReadingTestID
	}
	return 0
}

// CandidateURI binds the candidate path segment. Ids end up in store keys.
type CandidateURI struct {
	CandidateID string `uri:"candidate_id" json:"candidate_id" binding:"required,max=64,key_safe"`
}

// SaveAnswersRequest is the payload for an answer autosave.
// For writing the keys are "task1" and "task2".
type SaveAnswersRequest struct {
	Section Section           `json:"section" binding:"required,section"`
	Answers map[string]string `json:"answers" binding:"required,min=1,max=60"`
}

// SetSubSectionRequest moves the candidate between parts of a section.
type SetSubSectionRequest struct {
	Index *int `json:"index" binding:"required,min=0,max=3"`
}

// StartSessionRequest is the payload for starting a test.
type StartSessionRequest struct {
	CandidateNumber string `json:"candidate_number" binding:"omitempty,max=64"`
	CandidateName   string `json:"candidate_name" binding:"omitempty,max=255"`
}
