package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/session"
	"github.com/stemsi/ielts-mock/internal/store"
)

// SessionServiceConfig wires the session registry.
type SessionServiceConfig struct {
	Store        store.Store
	Evaluator    session.Evaluator
	Results      session.ResultSink
	Notifier     session.Notifier
	Publisher    session.Publisher
	Assignments  *AssignmentService
	Timers       session.TimerTable
	Clock        session.Clock
	TickInterval time.Duration
}

// SessionService keeps one session.Manager per active candidate and owns
// their countdowns.
type SessionService struct {
	cfg SessionServiceConfig
	log zerolog.Logger

	// ctx outlives requests; countdowns run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	managers map[string]*session.Manager
}

// NewSessionService creates a new SessionService.
func NewSessionService(cfg SessionServiceConfig, log zerolog.Logger) *SessionService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionService{
		cfg:      cfg,
		log:      log.With().Str("component", "session_service").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		managers: make(map[string]*session.Manager),
	}
}

func (s *SessionService) manager(ctx context.Context, candidateID string) *session.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.managers[candidateID]; ok {
		return m
	}

	a := s.cfg.Assignments.Resolve(ctx, candidateID)
	m := session.NewManager(session.Config{
		CandidateID:     candidateID,
		ReadingTestID:   a.ReadingTestID,
		ListeningTestID: a.ListeningTestID,
		Store:           s.cfg.Store,
		Evaluator:       s.cfg.Evaluator,
		Results:         s.cfg.Results,
		Notifier:        s.cfg.Notifier,
		Publisher:       s.cfg.Publisher,
		Timers:          s.cfg.Timers,
		Clock:           s.cfg.Clock,
		TickInterval:    s.cfg.TickInterval,
		Logger:          s.log,
	})
	s.managers[candidateID] = m
	return m
}

func (s *SessionService) forget(candidateID string) {
	s.mu.Lock()
	delete(s.managers, candidateID)
	s.mu.Unlock()
}

// loaded returns a manager with state in memory, rehydrating it from the
// store after a restart or an unload. A rehydrated running section gets
// its countdown back.
func (s *SessionService) loaded(ctx context.Context, candidateID string) (*session.Manager, error) {
	m := s.manager(ctx, candidateID)
	wasLoaded := m.Loaded()
	if err := m.Rehydrate(ctx); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			s.forget(candidateID)
		}
		return nil, err
	}
	if !wasLoaded {
		if st, ok := m.Snapshot(); ok && st.Phase == model.PhaseRunning {
			m.StartCountdown(s.ctx)
		}
	}
	return m, nil
}

// Load handles a page load: restore with penalty (or start fresh) and run
// the countdown.
func (s *SessionService) Load(ctx context.Context, candidateID string) (model.SessionState, error) {
	m := s.manager(ctx, candidateID)
	st, err := m.Load(ctx)
	if err != nil {
		return model.SessionState{}, err
	}
	m.StartCountdown(s.ctx)
	return st, nil
}

// Peek returns the current state without counting a reload.
func (s *SessionService) Peek(ctx context.Context, candidateID string) (model.SessionState, error) {
	m, err := s.loaded(ctx, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}
	st, _ := m.Snapshot()
	return st, nil
}

// Start starts the current section.
func (s *SessionService) Start(ctx context.Context, candidateID string, req model.StartSessionRequest) (model.SessionState, error) {
	m, err := s.loaded(ctx, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}
	st, err := m.Start(ctx, session.StartOptions{
		CandidateNumber: req.CandidateNumber,
		CandidateName:   req.CandidateName,
	})
	if err != nil {
		return model.SessionState{}, err
	}
	m.StartCountdown(s.ctx)
	return st, nil
}

// SaveAnswers autosaves answers of the current section.
func (s *SessionService) SaveAnswers(ctx context.Context, candidateID string, req model.SaveAnswersRequest) (model.SessionState, error) {
	m, err := s.loaded(ctx, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}
	return m.RecordAnswers(ctx, req.Section, req.Answers)
}

// SetSubSection changes the part, passage or task shown.
func (s *SessionService) SetSubSection(ctx context.Context, candidateID string, index int) (model.SessionState, error) {
	m, err := s.loaded(ctx, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}
	return m.SetSubSection(ctx, index)
}

// Advance completes or moves past the current section. Completing the
// last section finishes the test; the PersistResult is then non-nil.
func (s *SessionService) Advance(ctx context.Context, candidateID string) (model.SessionState, *session.PersistResult, error) {
	m, err := s.loaded(ctx, candidateID)
	if err != nil {
		return model.SessionState{}, nil, err
	}
	st, err := m.Advance(ctx)
	if err != nil {
		return model.SessionState{}, nil, err
	}
	if st.Phase != model.PhaseTestComplete {
		return st, nil, nil
	}

	res, err := s.finalize(ctx, m, session.FinalizeFinished)
	if err != nil {
		return st, nil, err
	}
	return st, res, nil
}

// Finish scores and records the test and destroys the session.
func (s *SessionService) Finish(ctx context.Context, candidateID string) (*session.PersistResult, error) {
	return s.finalizeCandidate(ctx, candidateID, session.FinalizeFinished)
}

// Abandon records an incomplete result and destroys the session.
func (s *SessionService) Abandon(ctx context.Context, candidateID string) (*session.PersistResult, error) {
	return s.finalizeCandidate(ctx, candidateID, session.FinalizeAbandoned)
}

// Unload saves the session for later and records an incomplete result.
func (s *SessionService) Unload(ctx context.Context, candidateID string) (*session.PersistResult, error) {
	return s.finalizeCandidate(ctx, candidateID, session.FinalizeUnloaded)
}

func (s *SessionService) finalizeCandidate(ctx context.Context, candidateID string, reason session.FinalizeReason) (*session.PersistResult, error) {
	m, err := s.loaded(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, m, reason)
}

// finalize runs Finalize and drops the manager from the registry. An
// unloaded session stays in the store and is rehydrated on the next call.
func (s *SessionService) finalize(ctx context.Context, m *session.Manager, reason session.FinalizeReason) (*session.PersistResult, error) {
	res, err := m.Finalize(ctx, reason)
	if err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			s.forget(m.CandidateID())
		}
		return nil, err
	}
	s.forget(m.CandidateID())

	s.log.Info().
		Str("candidate_id", m.CandidateID()).
		Str("reason", string(reason)).
		Bool("result_recorded", res.Result != nil).
		Msg("Session finalized")
	return res, nil
}

// Active returns a snapshot of every session loaded on this instance.
func (s *SessionService) Active() []model.SessionState {
	s.mu.Lock()
	managers := make([]*session.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	states := make([]model.SessionState, 0, len(managers))
	for _, m := range managers {
		if st, ok := m.Snapshot(); ok {
			states = append(states, st)
		}
	}
	return states
}

// Shutdown stops every countdown. Persisted sessions stay resumable.
func (s *SessionService) Shutdown() {
	s.cancel()

	s.mu.Lock()
	managers := make([]*session.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	for _, m := range managers {
		m.StopCountdown()
	}
	s.log.Info().Int("sessions", len(managers)).Msg("Session countdowns stopped")
}
