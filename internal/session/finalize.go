package session

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/notify"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

// Finalize is the single exit point of a session. Whatever the reason, all
// writes complete before the notification is handed to the Notifier, and a
// notification failure never surfaces here.
func (m *Manager) Finalize(ctx context.Context, reason FinalizeReason) (*PersistResult, error) {
	m.StopCountdown()

	m.mu.Lock()
	res, note, err := m.finalizeLocked(ctx, reason)
	m.mu.Unlock()

	m.publish(ctx)
	if err != nil {
		return nil, err
	}

	if note != nil && m.cfg.Notifier != nil {
		m.cfg.Notifier.Notify(ctx, *note)
	}
	return res, nil
}

func (m *Manager) finalizeLocked(ctx context.Context, reason FinalizeReason) (*PersistResult, *model.Notification, error) {
	if err := m.usableLocked(); err != nil {
		return nil, nil, err
	}
	now := m.cfg.Clock.Now()

	switch reason {
	case FinalizeFinished:
		return m.finishLocked(ctx, now)
	case FinalizeUnloaded:
		return m.unloadLocked(ctx, now)
	case FinalizeAbandoned:
		return m.abandonLocked(ctx, now)
	default:
		return nil, nil, fmt.Errorf("unknown finalize reason %q", reason)
	}
}

func (m *Manager) finishLocked(ctx context.Context, now time.Time) (*PersistResult, *model.Notification, error) {
	st := m.state
	if st.Phase == model.PhaseRunning {
		st.RemainingSeconds = remainingUntil(m.deadline, now)
		m.completeSectionLocked(ctx, now)
	}
	for _, sec := range model.SectionOrder {
		if _, done := st.Scores[sec]; sec.Scorable() && !done {
			m.scoreLocked(ctx, sec)
		}
	}

	r := m.buildResultLocked(now, model.ResultStatusCompleted)
	r.Reading.Score = st.Scores[model.SectionReading]
	r.Listening.Score = st.Scores[model.SectionListening]
	r.OverallBand = scoring.OverallBand(r.Reading.Score.Band, r.Listening.Score.Band, scoring.WithoutWriting())

	if err := m.cfg.Results.Append(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("append result: %w", err)
	}

	st.Phase = model.PhaseTestComplete
	m.closed = true
	cleared := m.clearOrLogLocked(ctx)
	m.emitLocked(EventTestComplete)

	m.log.Info().
		Str("result_id", r.ID.String()).
		Float64("reading_band", r.Reading.Score.Band).
		Float64("listening_band", r.Listening.Score.Band).
		Float64("overall_band", r.OverallBand).
		Msg("Test finished")

	n := notify.Result(r)
	return &PersistResult{Reason: FinalizeFinished, Result: r, StateCleared: cleared}, &n, nil
}

func (m *Manager) unloadLocked(ctx context.Context, now time.Time) (*PersistResult, *model.Notification, error) {
	m.refreshLocked(ctx, now)
	if err := m.persistLocked(ctx, now); err != nil {
		return nil, nil, err
	}

	res := &PersistResult{Reason: FinalizeUnloaded, StateSaved: true}
	r := m.incompleteResultLocked(ctx, now)
	if err := m.cfg.Results.Append(ctx, r); err != nil {
		m.log.Warn().Err(err).Msg("Incomplete result not recorded on unload")
	} else {
		res.Result = r
	}

	m.log.Info().
		Str("section", string(m.state.CurrentSection)).
		Int("remaining_seconds", m.state.RemainingSeconds).
		Msg("Session unloaded")

	n := notify.Incomplete(r)
	return res, &n, nil
}

func (m *Manager) abandonLocked(ctx context.Context, now time.Time) (*PersistResult, *model.Notification, error) {
	r := m.incompleteResultLocked(ctx, now)
	if err := m.cfg.Results.Append(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("append result: %w", err)
	}

	m.closed = true
	cleared := m.clearOrLogLocked(ctx)
	m.log.Info().Str("result_id", r.ID.String()).Msg("Session abandoned")

	n := notify.Incomplete(r)
	return &PersistResult{Reason: FinalizeAbandoned, Result: r, StateCleared: cleared}, &n, nil
}

// incompleteResultLocked builds an INCOMPLETE result with zero scores. The
// section totals are filled in when the answer key is available.
func (m *Manager) incompleteResultLocked(ctx context.Context, now time.Time) *model.TestResult {
	r := m.buildResultLocked(now, model.ResultStatusIncomplete)
	r.Note = model.PendingAdminNote
	r.Reading.Score = m.zeroScoreLocked(ctx, model.SectionReading)
	r.Listening.Score = m.zeroScoreLocked(ctx, model.SectionListening)
	return r
}

func (m *Manager) zeroScoreLocked(ctx context.Context, sec model.Section) scoring.ScoreResult {
	if m.cfg.Evaluator == nil {
		return scoring.ScoreResult{}
	}
	res, err := m.cfg.Evaluator.EvaluateSection(ctx, sec, m.state.TestIDFor(sec), nil, scoring.BandTableCoarse)
	if err != nil {
		return scoring.ScoreResult{}
	}
	return scoring.NewScoreResult(0, res.Total, scoring.BandTableCoarse)
}

func (m *Manager) buildResultLocked(now time.Time, status model.ResultStatus) *model.TestResult {
	st := m.state
	return &model.TestResult{
		ID:              uuid.New(),
		CandidateID:     st.CandidateID,
		CandidateNumber: st.CandidateNumber,
		CandidateName:   st.CandidateName,
		ReadingTestID:   st.ReadingTestID,
		ListeningTestID: st.ListeningTestID,
		Reading:         model.SectionResult{Answers: maps.Clone(st.Answers.Reading)},
		Listening:       model.SectionResult{Answers: maps.Clone(st.Answers.Listening)},
		Writing: model.WritingResult{
			Task1:      st.Answers.Writing.Task1,
			Task2:      st.Answers.Writing.Task2,
			Task1Words: scoring.WordCount(st.Answers.Writing.Task1),
			Task2Words: scoring.WordCount(st.Answers.Writing.Task2),
		},
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *Manager) clearOrLogLocked(ctx context.Context) bool {
	if err := m.clearLocked(ctx); err != nil {
		m.log.Error().Err(err).Msg("Session clear failed")
		return false
	}
	return true
}
