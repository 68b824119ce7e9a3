// Package session owns one candidate's test session: the section timer,
// the persisted session snapshot, and the hand-off between sections.
package session

import (
	"context"
	"errors"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

var (
	ErrNoSession         = errors.New("no session loaded")
	ErrSessionClosed     = errors.New("session already finalized")
	ErrInvalidPhase      = errors.New("operation not allowed in current phase")
	ErrSectionClosed     = errors.New("section is not accepting answers")
	ErrInvalidSubSection = errors.New("sub-section index out of range")
	ErrInvalidAnswerKey  = errors.New("invalid answer key for section")
)

// Evaluator scores one section of stored answers.
type Evaluator interface {
	EvaluateSection(ctx context.Context, section model.Section, testID int, answers scoring.Answers, table scoring.BandTable) (scoring.ScoreResult, error)
}

// ResultSink receives finished and abandoned test results.
type ResultSink interface {
	Append(ctx context.Context, r *model.TestResult) error
}

// Notifier is fire and forget. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// Publisher receives timer and phase events, e.g. for a live stream.
type Publisher interface {
	Publish(ctx context.Context, candidateID string, ev Event) error
}

// EventType names a session event.
type EventType string

const (
	EventTick            EventType = "tick"
	EventSectionStarted  EventType = "section_started"
	EventSectionComplete EventType = "section_complete"
	EventTestComplete    EventType = "test_complete"
)

// Event is pushed to subscribers on every tick and phase change.
type Event struct {
	Type             EventType     `json:"type"`
	Section          model.Section `json:"section"`
	Phase            model.Phase   `json:"phase"`
	SubSectionIndex  int           `json:"sub_section_index"`
	RemainingSeconds int           `json:"remaining_seconds"`
}

// FinalizeReason selects what Finalize does with the session.
type FinalizeReason string

const (
	// FinalizeFinished scores the test, records a completed result and
	// destroys the session.
	FinalizeFinished FinalizeReason = "FINISHED"
	// FinalizeUnloaded saves the session for resumption and records a
	// best-effort incomplete result.
	FinalizeUnloaded FinalizeReason = "UNLOADED"
	// FinalizeAbandoned records an incomplete result and destroys the
	// session.
	FinalizeAbandoned FinalizeReason = "ABANDONED"
)

// ParseFinalizeReason validates a reason name.
func ParseFinalizeReason(s string) (FinalizeReason, bool) {
	switch r := FinalizeReason(s); r {
	case FinalizeFinished, FinalizeUnloaded, FinalizeAbandoned:
		return r, true
	}
	return "", false
}

// PersistResult reports what Finalize wrote.
type PersistResult struct {
	Reason FinalizeReason `json:"reason"`
	// Result is nil when a best-effort append failed.
	Result       *model.TestResult `json:"result,omitempty"`
	StateSaved   bool              `json:"state_saved"`
	StateCleared bool              `json:"state_cleared"`
}
