package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
	"github.com/stemsi/ielts-mock/internal/store"
)

// Config wires a Manager to its collaborators.
type Config struct {
	CandidateID     string
	ReadingTestID   int
	ListeningTestID int

	Store     store.Store
	Evaluator Evaluator
	Results   ResultSink
	Notifier  Notifier  // optional
	Publisher Publisher // optional

	Timers       TimerTable
	Clock        Clock         // defaults to SystemClock
	TickInterval time.Duration // defaults to 1s
	Logger       zerolog.Logger
}

// Manager is the session state machine for one candidate. All methods are
// safe for concurrent use.
type Manager struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	state    *model.SessionState
	deadline time.Time
	closed   bool
	outbox   []Event

	cdMu      sync.Mutex
	countdown *countdown
}

// NewManager creates a Manager with no state loaded.
func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.ReadingTestID < 1 {
		cfg.ReadingTestID = model.DefaultTestID
	}
	if cfg.ListeningTestID < 1 {
		cfg.ListeningTestID = model.DefaultTestID
	}
	return &Manager{
		cfg: cfg,
		log: cfg.Logger.With().
			Str("component", "session").
			Str("candidate_id", cfg.CandidateID).
			Logger(),
	}
}

// CandidateID returns the candidate this manager belongs to.
func (m *Manager) CandidateID() string {
	return m.cfg.CandidateID
}

// Load is the page-load path: it restores the persisted session, charging
// the time elapsed since the last write plus the reload penalty, and
// re-persists it. With nothing (or nothing readable) persisted it starts a
// fresh session.
//
// Time is only charged while a section is RUNNING. Reloads in any other
// phase still bump RefreshCount, so they raise the penalty of the next
// reload inside a running section.
func (m *Manager) Load(ctx context.Context) (model.SessionState, error) {
	m.StopCountdown()

	m.mu.Lock()
	err := m.restoreLocked(ctx, true)
	var snap model.SessionState
	if err == nil {
		snap = m.snapshotLocked()
	}
	m.mu.Unlock()

	m.publish(ctx)
	return snap, err
}

// Rehydrate loads the persisted session without counting a reload. Elapsed
// time is still charged. It is a no-op when state is already in memory and
// returns ErrNoSession when nothing usable is persisted.
func (m *Manager) Rehydrate(ctx context.Context) error {
	m.mu.Lock()
	var err error
	if m.state == nil {
		err = m.restoreLocked(ctx, false)
	}
	m.mu.Unlock()

	m.publish(ctx)
	return err
}

// Loaded reports whether state is in memory.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil
}

// Snapshot returns a copy of the current state with the remaining time
// computed for now. ok is false when nothing is loaded.
func (m *Manager) Snapshot() (st model.SessionState, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return model.SessionState{}, false
	}
	return m.snapshotLocked(), true
}

// StartOptions carries optional candidate details recorded on start.
type StartOptions struct {
	CandidateNumber string
	CandidateName   string
}

// Start begins the countdown of the current section. Starting a running
// section is a no-op.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (model.SessionState, error) {
	m.mu.Lock()
	snap, err := m.startLocked(ctx, opts)
	m.mu.Unlock()

	m.publish(ctx)
	return snap, err
}

func (m *Manager) startLocked(ctx context.Context, opts StartOptions) (model.SessionState, error) {
	if err := m.usableLocked(); err != nil {
		return model.SessionState{}, err
	}
	st := m.state
	now := m.cfg.Clock.Now()

	if opts.CandidateNumber != "" {
		st.CandidateNumber = opts.CandidateNumber
	}
	if opts.CandidateName != "" {
		st.CandidateName = opts.CandidateName
	}

	switch st.Phase {
	case model.PhaseRunning:
		m.refreshLocked(ctx, now)
		return m.snapshotLocked(), nil
	case model.PhaseNotStarted:
	default:
		return model.SessionState{}, fmt.Errorf("start %s in %s: %w", st.CurrentSection, st.Phase, ErrInvalidPhase)
	}

	if st.StartedAt.IsZero() {
		st.StartedAt = now
	}
	st.Phase = model.PhaseRunning
	m.deadline = now.Add(time.Duration(st.RemainingSeconds) * time.Second)

	if err := m.persistLocked(ctx, now); err != nil {
		return model.SessionState{}, err
	}
	m.emitLocked(EventSectionStarted)

	m.log.Info().
		Str("section", string(st.CurrentSection)).
		Int("remaining_seconds", st.RemainingSeconds).
		Msg("Section started")
	return m.snapshotLocked(), nil
}

// Tick recomputes the remaining time from the deadline and persists it.
// When the time is up the section completes. Outside a running section it
// returns a zero Event and writes nothing.
func (m *Manager) Tick(ctx context.Context) (Event, error) {
	m.mu.Lock()
	ev, err := m.tickLocked(ctx)
	m.mu.Unlock()

	m.publish(ctx)
	return ev, err
}

func (m *Manager) tickLocked(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if err := m.usableLocked(); err != nil {
		return Event{}, err
	}
	if m.state.Phase != model.PhaseRunning {
		return Event{}, nil
	}

	now := m.cfg.Clock.Now()
	if m.refreshLocked(ctx, now) {
		return m.eventLocked(EventSectionComplete), nil
	}

	if err := m.persistLocked(ctx, now); err != nil {
		m.log.Warn().Err(err).Msg("Tick persist failed")
	}
	return m.emitLocked(EventTick), nil
}

// RecordAnswers merges answers into the current section. For reading and
// listening the keys are question numbers; for writing they are "task1"
// and "task2". Both the session and the section scratch blob are
// rewritten.
func (m *Manager) RecordAnswers(ctx context.Context, sec model.Section, answers map[string]string) (model.SessionState, error) {
	m.mu.Lock()
	snap, err := m.recordAnswersLocked(ctx, sec, answers)
	m.mu.Unlock()

	m.publish(ctx)
	return snap, err
}

func (m *Manager) recordAnswersLocked(ctx context.Context, sec model.Section, answers map[string]string) (model.SessionState, error) {
	if err := m.usableLocked(); err != nil {
		return model.SessionState{}, err
	}
	st := m.state
	now := m.cfg.Clock.Now()
	m.refreshLocked(ctx, now)

	if sec != st.CurrentSection || st.Phase != model.PhaseRunning {
		return model.SessionState{}, fmt.Errorf("%s: %w", sec, ErrSectionClosed)
	}

	switch sec {
	case model.SectionWriting:
		for k := range answers {
			if k != "task1" && k != "task2" {
				return model.SessionState{}, fmt.Errorf("%q: %w", k, ErrInvalidAnswerKey)
			}
		}
		if v, ok := answers["task1"]; ok {
			st.Answers.Writing.Task1 = v
		}
		if v, ok := answers["task2"]; ok {
			st.Answers.Writing.Task2 = v
		}
	default:
		normalized := make(map[string]string, len(answers))
		for k, v := range answers {
			n, ok := scoring.QuestionNumber(k)
			if !ok {
				return model.SessionState{}, fmt.Errorf("%q: %w", k, ErrInvalidAnswerKey)
			}
			normalized[strconv.Itoa(n)] = v
		}
		maps.Copy(st.SectionAnswers(sec), normalized)
	}

	if err := m.persistScratchLocked(ctx, sec); err != nil {
		return model.SessionState{}, err
	}
	if err := m.persistLocked(ctx, now); err != nil {
		return model.SessionState{}, err
	}
	return m.snapshotLocked(), nil
}

// SetSubSection moves to a part, passage or task of the running section.
func (m *Manager) SetSubSection(ctx context.Context, index int) (model.SessionState, error) {
	m.mu.Lock()
	snap, err := m.setSubSectionLocked(ctx, index)
	m.mu.Unlock()

	m.publish(ctx)
	return snap, err
}

func (m *Manager) setSubSectionLocked(ctx context.Context, index int) (model.SessionState, error) {
	if err := m.usableLocked(); err != nil {
		return model.SessionState{}, err
	}
	st := m.state
	now := m.cfg.Clock.Now()
	m.refreshLocked(ctx, now)

	if st.Phase != model.PhaseRunning {
		return model.SessionState{}, fmt.Errorf("change sub-section in %s: %w", st.Phase, ErrInvalidPhase)
	}
	if index < 0 || index >= st.CurrentSection.SubSectionCount() {
		return model.SessionState{}, fmt.Errorf("%s index %d: %w", st.CurrentSection, index, ErrInvalidSubSection)
	}

	st.SubSectionIndex = index
	if err := m.persistLocked(ctx, now); err != nil {
		return model.SessionState{}, err
	}
	return m.snapshotLocked(), nil
}

// Advance completes a running section early, or moves a completed section
// on to the next one. After writing it marks the test complete; the caller
// then finalizes with FinalizeFinished.
func (m *Manager) Advance(ctx context.Context) (model.SessionState, error) {
	m.mu.Lock()
	snap, err := m.advanceLocked(ctx)
	m.mu.Unlock()

	m.publish(ctx)
	return snap, err
}

func (m *Manager) advanceLocked(ctx context.Context) (model.SessionState, error) {
	if err := m.usableLocked(); err != nil {
		return model.SessionState{}, err
	}
	st := m.state
	now := m.cfg.Clock.Now()

	if m.refreshLocked(ctx, now) {
		return m.snapshotLocked(), nil
	}

	switch st.Phase {
	case model.PhaseRunning:
		m.completeSectionLocked(ctx, now)
	case model.PhaseSectionComplete:
		next, ok := st.CurrentSection.Next()
		if !ok {
			st.Phase = model.PhaseTestComplete
			if err := m.persistLocked(ctx, now); err != nil {
				return model.SessionState{}, err
			}
			m.emitLocked(EventTestComplete)
			break
		}
		st.CurrentSection = next
		st.SubSectionIndex = 0
		st.Phase = model.PhaseNotStarted
		st.RemainingSeconds = m.cfg.Timers.LimitSeconds(next)
		if err := m.persistLocked(ctx, now); err != nil {
			return model.SessionState{}, err
		}
	default:
		return model.SessionState{}, fmt.Errorf("advance in %s: %w", st.Phase, ErrInvalidPhase)
	}
	return m.snapshotLocked(), nil
}

// restoreLocked implements Load (pageLoad) and Rehydrate. Only a page load
// counts as a reload and may start a fresh session.
func (m *Manager) restoreLocked(ctx context.Context, pageLoad bool) error {
	now := m.cfg.Clock.Now()
	m.closed = false
	m.deadline = time.Time{}

	raw, err := m.cfg.Store.Get(ctx, config.CacheKey.SessionStateKey(m.cfg.CandidateID))
	if errors.Is(err, store.ErrNotFound) {
		if !pageLoad {
			return ErrNoSession
		}
		return m.freshLocked(ctx, now)
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	st, err := decodeState(raw, m.cfg.CandidateID)
	if err != nil {
		m.log.Warn().Err(err).Msg("Persisted session unreadable")
		if !pageLoad {
			return ErrNoSession
		}
		return m.freshLocked(ctx, now)
	}

	elapsed, penalty := 0, 0
	if st.Phase == model.PhaseRunning {
		elapsed = elapsedSeconds(st.LastPersistedAt, now)
	}
	if pageLoad {
		st.RefreshCount++
		if st.Phase == model.PhaseRunning {
			penalty = ComputeReloadPenalty(st.RefreshCount)
		}
	}
	st.RemainingSeconds = max(0, st.RemainingSeconds-elapsed-penalty)
	m.state = st

	m.log.Info().
		Str("section", string(st.CurrentSection)).
		Str("phase", string(st.Phase)).
		Int("elapsed_seconds", elapsed).
		Int("penalty_seconds", penalty).
		Int("refresh_count", st.RefreshCount).
		Int("remaining_seconds", st.RemainingSeconds).
		Msg("Session restored")

	if st.Phase == model.PhaseRunning {
		m.deadline = now.Add(time.Duration(st.RemainingSeconds) * time.Second)
		if st.RemainingSeconds == 0 {
			m.completeSectionLocked(ctx, now)
			return nil
		}
	}
	return m.persistLocked(ctx, now)
}

func (m *Manager) freshLocked(ctx context.Context, now time.Time) error {
	m.state = &model.SessionState{
		CandidateID:      m.cfg.CandidateID,
		ReadingTestID:    m.cfg.ReadingTestID,
		ListeningTestID:  m.cfg.ListeningTestID,
		CurrentSection:   model.SectionOrder[0],
		Phase:            model.PhaseNotStarted,
		RemainingSeconds: m.cfg.Timers.LimitSeconds(model.SectionOrder[0]),
		Answers: model.SessionAnswers{
			Listening: scoring.Answers{},
			Reading:   scoring.Answers{},
		},
		Scores: map[model.Section]scoring.ScoreResult{},
	}
	return m.persistLocked(ctx, now)
}

// refreshLocked recomputes the remaining time of a running section and
// completes it when the time is up. It reports whether it completed.
func (m *Manager) refreshLocked(ctx context.Context, now time.Time) bool {
	st := m.state
	if st.Phase != model.PhaseRunning {
		return false
	}
	st.RemainingSeconds = remainingUntil(m.deadline, now)
	if st.RemainingSeconds > 0 {
		return false
	}
	m.completeSectionLocked(ctx, now)
	return true
}

// completeSectionLocked moves RUNNING to SECTION_COMPLETE and scores the
// section with the fine table. Scoring and persistence failures are
// logged; the hand-off always happens.
func (m *Manager) completeSectionLocked(ctx context.Context, now time.Time) {
	st := m.state
	st.Phase = model.PhaseSectionComplete
	m.deadline = time.Time{}

	if st.CurrentSection.Scorable() {
		m.scoreLocked(ctx, st.CurrentSection)
	}

	if err := m.persistLocked(ctx, now); err != nil {
		m.log.Warn().Err(err).Msg("Persist after section completion failed")
	}
	m.emitLocked(EventSectionComplete)

	m.log.Info().
		Str("section", string(st.CurrentSection)).
		Int("remaining_seconds", st.RemainingSeconds).
		Msg("Section complete")
}

func (m *Manager) scoreLocked(ctx context.Context, sec model.Section) {
	if m.cfg.Evaluator == nil {
		return
	}
	st := m.state
	res, err := m.cfg.Evaluator.EvaluateSection(ctx, sec, st.TestIDFor(sec), st.SectionAnswers(sec), scoring.BandTableFine)
	if err != nil {
		m.log.Warn().Err(err).Str("section", string(sec)).Msg("Section scoring failed")
		return
	}
	if st.Scores == nil {
		st.Scores = map[model.Section]scoring.ScoreResult{}
	}
	st.Scores[sec] = res
}

func (m *Manager) usableLocked() error {
	if m.closed {
		return ErrSessionClosed
	}
	if m.state == nil {
		return ErrNoSession
	}
	return nil
}

func (m *Manager) persistLocked(ctx context.Context, now time.Time) error {
	m.state.LastPersistedAt = now.UnixMilli()
	raw, err := json.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.cfg.Store.Set(ctx, config.CacheKey.SessionStateKey(m.cfg.CandidateID), raw); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (m *Manager) persistScratchLocked(ctx context.Context, sec model.Section) error {
	var v any = m.state.SectionAnswers(sec)
	if sec == model.SectionWriting {
		v = m.state.Answers.Writing
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s answers: %w", sec, err)
	}
	if err := m.cfg.Store.Set(ctx, config.CacheKey.SectionScratchKey(m.cfg.CandidateID, string(sec)), raw); err != nil {
		return fmt.Errorf("persist %s answers: %w", sec, err)
	}
	return nil
}

func (m *Manager) clearLocked(ctx context.Context) error {
	keys := []string{config.CacheKey.SessionStateKey(m.cfg.CandidateID)}
	for _, sec := range model.SectionOrder {
		keys = append(keys, config.CacheKey.SectionScratchKey(m.cfg.CandidateID, string(sec)))
	}
	return m.cfg.Store.Remove(ctx, keys...)
}

func (m *Manager) snapshotLocked() model.SessionState {
	c := *m.state
	c.Answers.Listening = maps.Clone(m.state.Answers.Listening)
	c.Answers.Reading = maps.Clone(m.state.Answers.Reading)
	c.Scores = maps.Clone(m.state.Scores)
	if c.Phase == model.PhaseRunning {
		c.RemainingSeconds = remainingUntil(m.deadline, m.cfg.Clock.Now())
	}
	return c
}

func (m *Manager) eventLocked(t EventType) Event {
	st := m.state
	return Event{
		Type:             t,
		Section:          st.CurrentSection,
		Phase:            st.Phase,
		SubSectionIndex:  st.SubSectionIndex,
		RemainingSeconds: st.RemainingSeconds,
	}
}

func (m *Manager) emitLocked(t EventType) Event {
	ev := m.eventLocked(t)
	m.outbox = append(m.outbox, ev)
	return ev
}

// publish drains queued events to the publisher outside the state lock.
func (m *Manager) publish(ctx context.Context) {
	m.mu.Lock()
	evs := m.outbox
	m.outbox = nil
	m.mu.Unlock()

	if m.cfg.Publisher == nil {
		return
	}
	for _, ev := range evs {
		if err := m.cfg.Publisher.Publish(ctx, m.cfg.CandidateID, ev); err != nil {
			m.log.Debug().Err(err).Str("event", string(ev.Type)).Msg("Event publish failed")
		}
	}
}

// decodeState parses a persisted blob and rejects states that cannot
// belong to this candidate or violate basic invariants.
func decodeState(raw []byte, candidateID string) (*model.SessionState, error) {
	var st model.SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	switch {
	case st.CandidateID != candidateID:
		return nil, fmt.Errorf("session belongs to %q", st.CandidateID)
	case !st.CurrentSection.Valid():
		return nil, fmt.Errorf("invalid section %q", st.CurrentSection)
	case st.RemainingSeconds < 0:
		return nil, fmt.Errorf("negative remaining time %d", st.RemainingSeconds)
	case st.RefreshCount < 0:
		return nil, fmt.Errorf("negative refresh count %d", st.RefreshCount)
	case st.SubSectionIndex < 0 || st.SubSectionIndex >= st.CurrentSection.SubSectionCount():
		return nil, fmt.Errorf("invalid sub-section %d", st.SubSectionIndex)
	}
	switch st.Phase {
	case model.PhaseNotStarted, model.PhaseRunning, model.PhaseSectionComplete, model.PhaseTestComplete:
	default:
		return nil, fmt.Errorf("invalid phase %q", st.Phase)
	}

	if st.Answers.Listening == nil {
		st.Answers.Listening = scoring.Answers{}
	}
	if st.Answers.Reading == nil {
		st.Answers.Reading = scoring.Answers{}
	}
	if st.Scores == nil {
		st.Scores = map[model.Section]scoring.ScoreResult{}
	}
	return &st, nil
}
