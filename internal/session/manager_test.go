package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
	"github.com/stemsi/ielts-mock/internal/store"
)

const candidate = "c-1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type keyEvaluator struct {
	keys map[model.Section]scoring.AnswerKey
	err  error
}

func (e *keyEvaluator) EvaluateSection(_ context.Context, sec model.Section, _ int, answers scoring.Answers, table scoring.BandTable) (scoring.ScoreResult, error) {
	if e.err != nil {
		return scoring.ScoreResult{}, e.err
	}
	key, ok := e.keys[sec]
	if !ok {
		return scoring.ScoreResult{}, fmt.Errorf("no key for %s", sec)
	}
	return scoring.Score(answers, key, table), nil
}

type memorySink struct {
	mu      sync.Mutex
	results []model.TestResult
	err     error
}

func (s *memorySink) Append(_ context.Context, r *model.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, *r)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type hookNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	hook func(model.Notification)
}

func (n *hookNotifier) Notify(_ context.Context, note model.Notification) {
	if n.hook != nil {
		n.hook(note)
	}
	n.mu.Lock()
	n.sent = append(n.sent, note)
	n.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func numberedKey(n int) scoring.AnswerKey {
	key := scoring.AnswerKey{}
	for i := 1; i <= n; i++ {
		key[fmt.Sprint(i)] = fmt.Sprintf("answer%03d", i)
	}
	return key
}

func correctAnswers(n int) map[string]string {
	a := map[string]string{}
	for i := 1; i <= n; i++ {
		a[fmt.Sprint(i)] = fmt.Sprintf("ANSWER%03d", i)
	}
	return a
}

type fixture struct {
	m         *Manager
	store     *store.MemoryStore
	clock     *fakeClock
	eval      *keyEvaluator
	sink      *memorySink
	notifier  *hookNotifier
	publisher *recordingPublisher
}

func newFixture(t *testing.T, timers TimerTable) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemoryStore(),
		clock: newFakeClock(),
		eval: &keyEvaluator{keys: map[model.Section]scoring.AnswerKey{
			model.SectionListening: numberedKey(40),
			model.SectionReading:   numberedKey(40),
		}},
		sink:      &memorySink{},
		notifier:  &hookNotifier{},
		publisher: &recordingPublisher{},
	}
	f.m = NewManager(Config{
		CandidateID:     candidate,
		ReadingTestID:   2,
		ListeningTestID: 3,
		Store:           f.store,
		Evaluator:       f.eval,
		Results:         f.sink,
		Notifier:        f.notifier,
		Publisher:       f.publisher,
		Timers:          timers,
		Clock:           f.clock,
		TickInterval:    5 * time.Millisecond,
		Logger:          zerolog.Nop(),
	})
	t.Cleanup(f.m.StopCountdown)
	return f
}

func (f *fixture) seed(t *testing.T, st model.SessionState) {
	t.Helper()
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), config.CacheKey.SessionStateKey(st.CandidateID), raw))
}

func (f *fixture) persisted(t *testing.T) model.SessionState {
	t.Helper()
	raw, err := f.store.Get(context.Background(), config.CacheKey.SessionStateKey(candidate))
	require.NoError(t, err)
	var st model.SessionState
	require.NoError(t, json.Unmarshal(raw, &st))
	return st
}

func runningState(sec model.Section, remaining int, persistedAt time.Time) model.SessionState {
	return model.SessionState{
		CandidateID:      candidate,
		ReadingTestID:    2,
		ListeningTestID:  3,
		CurrentSection:   sec,
		Phase:            model.PhaseRunning,
		RemainingSeconds: remaining,
		LastPersistedAt:  persistedAt.UnixMilli(),
	}
}

func TestLoad_FreshState(t *testing.T) {
	f := newFixture(t, ProductionTimers)

	st, err := f.m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.SectionListening, st.CurrentSection)
	assert.Equal(t, model.PhaseNotStarted, st.Phase)
	assert.Equal(t, 1800, st.RemainingSeconds)
	assert.Equal(t, 0, st.RefreshCount)
	assert.Equal(t, 2, st.ReadingTestID)
	assert.Equal(t, 3, st.ListeningTestID)

	persisted := f.persisted(t)
	assert.Equal(t, model.PhaseNotStarted, persisted.Phase)
	assert.Equal(t, f.clock.Now().UnixMilli(), persisted.LastPersistedAt)
}

func TestLoad_RestoreChargesElapsedAndPenalty(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	f.seed(t, runningState(model.SectionReading, 100, f.clock.Now().Add(-10*time.Second)))

	st, err := f.m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 87, st.RemainingSeconds)
	assert.Equal(t, 1, st.RefreshCount)
	assert.Equal(t, model.PhaseRunning, st.Phase)

	persisted := f.persisted(t)
	assert.Equal(t, 87, persisted.RemainingSeconds)
	assert.Equal(t, 1, persisted.RefreshCount)
}

func TestLoad_PenaltyCompounds(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	f.seed(t, runningState(model.SectionReading, 100, f.clock.Now()))

	st, err := f.m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 97, st.RemainingSeconds)

	st, err = f.m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 91, st.RemainingSeconds)
	assert.Equal(t, 2, st.RefreshCount)

	st, err = f.m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 82, st.RemainingSeconds)
	assert.Equal(t, 3, st.RefreshCount)
}

func TestLoad_ClampsAtZeroAndCompletesSection(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	st := runningState(model.SectionReading, 5, f.clock.Now().Add(-10*time.Second))
	st.Answers.Reading = scoring.Answers(correctAnswers(20))
	f.seed(t, st)

	got, err := f.m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, got.RemainingSeconds)
	assert.Equal(t, model.PhaseSectionComplete, got.Phase)
	require.Contains(t, got.Scores, model.SectionReading)
	assert.Equal(t, 20, got.Scores[model.SectionReading].RawCorrectCount)
	assert.Equal(t, 5.0, got.Scores[model.SectionReading].Band)
}

func TestLoad_NotRunningKeepsTime(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	st := runningState(model.SectionReading, 3600, f.clock.Now().Add(-time.Hour))
	st.Phase = model.PhaseNotStarted
	f.seed(t, st)

	got, err := f.m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3600, got.RemainingSeconds)
	assert.Equal(t, 1, got.RefreshCount)
}

func TestLoad_IdleReloadsRaiseLaterPenalty(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()

	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	st, err := f.m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1800, st.RemainingSeconds)
	assert.Equal(t, 1, st.RefreshCount)

	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)

	st, err = f.m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.RefreshCount)
	assert.Equal(t, 1800-ComputeReloadPenalty(2), st.RemainingSeconds)
}

func TestLoad_CorruptStateStartsFresh(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{broken"},
		{"other candidate", `{"candidate_id":"c-2","current_section":"reading","phase":"RUNNING"}`},
		{"bad section", `{"candidate_id":"c-1","current_section":"speaking","phase":"RUNNING"}`},
		{"bad phase", `{"candidate_id":"c-1","current_section":"reading","phase":"PAUSED"}`},
		{"negative time", `{"candidate_id":"c-1","current_section":"reading","phase":"RUNNING","remaining_seconds":-4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DevelopmentTimers)
			require.NoError(t, f.store.Set(context.Background(), config.CacheKey.SessionStateKey(candidate), []byte(tt.raw)))

			st, err := f.m.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, model.SectionListening, st.CurrentSection)
			assert.Equal(t, model.PhaseNotStarted, st.Phase)
			assert.Equal(t, 180, st.RemainingSeconds)
			assert.Equal(t, 0, st.RefreshCount)
		})
	}
}

func TestRehydrate_NoPenalty(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	f.seed(t, runningState(model.SectionListening, 100, f.clock.Now().Add(-4*time.Second)))

	require.NoError(t, f.m.Rehydrate(context.Background()))
	st, ok := f.m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 96, st.RemainingSeconds)
	assert.Equal(t, 0, st.RefreshCount)

	// Already loaded: nothing is re-read.
	f.clock.Advance(time.Second)
	require.NoError(t, f.m.Rehydrate(context.Background()))
	st, _ = f.m.Snapshot()
	assert.Equal(t, 95, st.RemainingSeconds)
}

func TestOperationsRequireLoad(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()

	_, ok := f.m.Snapshot()
	assert.False(t, ok)

	_, err := f.m.Start(ctx, StartOptions{})
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{"1": "x"})
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = f.m.Finalize(ctx, FinalizeFinished)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStartAndTick(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	st, err := f.m.Start(ctx, StartOptions{CandidateNumber: "000123", CandidateName: "Rina"})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRunning, st.Phase)
	assert.Equal(t, "000123", st.CandidateNumber)
	assert.False(t, st.StartedAt.IsZero())

	f.clock.Advance(1500 * time.Millisecond)
	ev, err := f.m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventTick, ev.Type)
	assert.Equal(t, 1799, ev.RemainingSeconds)
	assert.Equal(t, 1799, f.persisted(t).RemainingSeconds)

	// Starting again is a no-op.
	st, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1799, st.RemainingSeconds)

	assert.Equal(t, []EventType{EventSectionStarted, EventTick}, f.publisher.types())
}

func TestTick_IdleOutsideRunning(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	before := f.persisted(t).LastPersistedAt

	f.clock.Advance(time.Minute)
	ev, err := f.m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Event{}, ev)
	assert.Equal(t, before, f.persisted(t).LastPersistedAt)
}

func TestTimeUpCompletesAndScoresSection(t *testing.T) {
	f := newFixture(t, DevelopmentTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.m.RecordAnswers(ctx, model.SectionListening, correctAnswers(30))
	require.NoError(t, err)

	f.clock.Advance(180 * time.Second)
	ev, err := f.m.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventSectionComplete, ev.Type)
	assert.Equal(t, 0, ev.RemainingSeconds)

	st, _ := f.m.Snapshot()
	assert.Equal(t, model.PhaseSectionComplete, st.Phase)
	assert.Equal(t, 7.5, st.Scores[model.SectionListening].Band)

	// Late answers are rejected once the section is closed.
	_, err = f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{"31": "x"})
	assert.ErrorIs(t, err, ErrSectionClosed)

	st, err = f.m.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SectionReading, st.CurrentSection)
	assert.Equal(t, model.PhaseNotStarted, st.Phase)
	assert.Equal(t, 180, st.RemainingSeconds)
	assert.Equal(t, 0, st.SubSectionIndex)
}

func TestScoringFailureDoesNotBlockHandOff(t *testing.T) {
	f := newFixture(t, DevelopmentTimers)
	f.eval.err = errors.New("key store down")
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)

	st, err := f.m.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseSectionComplete, st.Phase)
	assert.NotContains(t, st.Scores, model.SectionListening)

	st, err = f.m.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SectionReading, st.CurrentSection)
}

func TestRecordAnswers(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	_, err = f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{"1": "a"})
	assert.ErrorIs(t, err, ErrSectionClosed, "not started yet")

	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)

	_, err = f.m.RecordAnswers(ctx, model.SectionReading, map[string]string{"1": "a"})
	assert.ErrorIs(t, err, ErrSectionClosed, "wrong section")

	_, err = f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{"1": "a", "q2": "b"})
	assert.ErrorIs(t, err, ErrInvalidAnswerKey)

	st, err := f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{" 01 ": "clubs", "2": "tuesday"})
	require.NoError(t, err)
	assert.Equal(t, scoring.Answers{"1": "clubs", "2": "tuesday"}, st.Answers.Listening)

	st, err = f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{"2": ""})
	require.NoError(t, err)
	assert.Equal(t, scoring.Answers{"1": "clubs", "2": ""}, st.Answers.Listening)

	raw, err := f.store.Get(ctx, config.CacheKey.SectionScratchKey(candidate, "listening"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"clubs","2":""}`, string(raw))
	assert.Equal(t, scoring.Answers{"1": "clubs", "2": ""}, f.persisted(t).Answers.Listening)
}

func TestRecordAnswers_Writing(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()
	f.seed(t, runningState(model.SectionWriting, 600, f.clock.Now()))
	require.NoError(t, f.m.Rehydrate(ctx))

	_, err := f.m.RecordAnswers(ctx, model.SectionWriting, map[string]string{"task3": "x"})
	assert.ErrorIs(t, err, ErrInvalidAnswerKey)

	st, err := f.m.RecordAnswers(ctx, model.SectionWriting, map[string]string{"task1": "The chart shows sales."})
	require.NoError(t, err)
	assert.Equal(t, "The chart shows sales.", st.Answers.Writing.Task1)

	raw, err := f.store.Get(ctx, config.CacheKey.SectionScratchKey(candidate, "writing"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"task1":"The chart shows sales.","task2":""}`, string(raw))
}

func TestSetSubSection(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()
	f.seed(t, runningState(model.SectionReading, 600, f.clock.Now()))
	require.NoError(t, f.m.Rehydrate(ctx))

	st, err := f.m.SetSubSection(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, st.SubSectionIndex)
	assert.Equal(t, 2, f.persisted(t).SubSectionIndex)

	_, err = f.m.SetSubSection(ctx, 3)
	assert.ErrorIs(t, err, ErrInvalidSubSection)
	_, err = f.m.SetSubSection(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidSubSection)
}

func TestAdvance_ThroughAllSections(t *testing.T) {
	f := newFixture(t, DevelopmentTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	for _, sec := range model.SectionOrder {
		st, err := f.m.Start(ctx, StartOptions{})
		require.NoError(t, err)
		require.Equal(t, sec, st.CurrentSection)

		st, err = f.m.Advance(ctx)
		require.NoError(t, err)
		require.Equal(t, model.PhaseSectionComplete, st.Phase)

		st, err = f.m.Advance(ctx)
		require.NoError(t, err)
		if sec == model.SectionWriting {
			assert.Equal(t, model.PhaseTestComplete, st.Phase)
		} else {
			assert.Equal(t, model.PhaseNotStarted, st.Phase)
		}
	}

	_, err = f.m.Advance(ctx)
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = f.m.Start(ctx, StartOptions{})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestFinalize_Finished(t *testing.T) {
	f := newFixture(t, DevelopmentTimers)
	ctx := context.Background()

	var storeClearedAtNotify, resultWrittenAtNotify bool
	f.notifier.hook = func(model.Notification) {
		_, err := f.store.Get(ctx, config.CacheKey.SessionStateKey(candidate))
		storeClearedAtNotify = errors.Is(err, store.ErrNotFound)
		resultWrittenAtNotify = f.sink.len() == 1
	}

	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.m.RecordAnswers(ctx, model.SectionListening, correctAnswers(30))
	require.NoError(t, err)
	_, err = f.m.Advance(ctx)
	require.NoError(t, err)
	_, err = f.m.Advance(ctx)
	require.NoError(t, err)
	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.m.RecordAnswers(ctx, model.SectionReading, correctAnswers(38))
	require.NoError(t, err)
	_, err = f.m.Advance(ctx)
	require.NoError(t, err)
	_, err = f.m.Advance(ctx)
	require.NoError(t, err)
	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.m.RecordAnswers(ctx, model.SectionWriting, map[string]string{"task1": "one two three", "task2": "four five"})
	require.NoError(t, err)

	res, err := f.m.Finalize(ctx, FinalizeFinished)
	require.NoError(t, err)
	require.NotNil(t, res.Result)
	assert.True(t, res.StateCleared)

	r := res.Result
	assert.Equal(t, model.ResultStatusCompleted, r.Status)
	assert.Equal(t, 9.0, r.Reading.Score.Band)
	assert.Equal(t, 38, r.Reading.Score.RawCorrectCount)
	assert.Equal(t, 7.5, r.Listening.Score.Band)
	assert.Equal(t, 8.5, r.OverallBand)
	assert.Equal(t, 3, r.Writing.Task1Words)
	assert.Equal(t, 2, r.Writing.Task2Words)
	assert.Equal(t, 2, r.ReadingTestID)
	assert.Equal(t, 3, r.ListeningTestID)

	require.Equal(t, 1, f.sink.len())
	for _, sec := range model.SectionOrder {
		_, err := f.store.Get(ctx, config.CacheKey.SectionScratchKey(candidate, string(sec)))
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, model.NotificationResult, f.notifier.sent[0].Kind)
	assert.True(t, storeClearedAtNotify)
	assert.True(t, resultWrittenAtNotify)

	_, err = f.m.Tick(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = f.m.Finalize(ctx, FinalizeFinished)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestFinalize_FinishedMidSectionScoresEverything(t *testing.T) {
	f := newFixture(t, DevelopmentTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	_, err = f.m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	_, err = f.m.RecordAnswers(ctx, model.SectionListening, correctAnswers(20))
	require.NoError(t, err)

	res, err := f.m.Finalize(ctx, FinalizeFinished)
	require.NoError(t, err)

	assert.Equal(t, 5.0, res.Result.Listening.Score.Band)
	assert.Equal(t, 40, res.Result.Reading.Score.Total)
	assert.Equal(t, 0.0, res.Result.Reading.Score.Band)
	assert.Equal(t, 2.5, res.Result.OverallBand)
}

func TestFinalize_FinishedAppendFailureKeepsSession(t *testing.T) {
	f := newFixture(t, DevelopmentTimers)
	f.sink.err = errors.New("db down")
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	_, err = f.m.Finalize(ctx, FinalizeFinished)
	require.Error(t, err)
	assert.Empty(t, f.notifier.sent)

	_, err = f.store.Get(ctx, config.CacheKey.SessionStateKey(candidate))
	assert.NoError(t, err)

	f.sink.err = nil
	res, err := f.m.Finalize(ctx, FinalizeFinished)
	require.NoError(t, err)
	assert.NotNil(t, res.Result)
}

func TestFinalize_Unloaded(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()

	var resultWrittenAtNotify bool
	f.notifier.hook = func(model.Notification) { resultWrittenAtNotify = f.sink.len() == 1 }

	f.seed(t, runningState(model.SectionReading, 1000, f.clock.Now()))
	require.NoError(t, f.m.Rehydrate(ctx))
	_, err := f.m.RecordAnswers(ctx, model.SectionReading, map[string]string{"1": "answer001", "2": "x"})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Second)
	res, err := f.m.Finalize(ctx, FinalizeUnloaded)
	require.NoError(t, err)
	assert.True(t, res.StateSaved)
	assert.False(t, res.StateCleared)
	require.NotNil(t, res.Result)

	r := res.Result
	assert.Equal(t, model.ResultStatusIncomplete, r.Status)
	assert.Equal(t, model.PendingAdminNote, r.Note)
	assert.Equal(t, 0, r.Reading.Score.RawCorrectCount)
	assert.Equal(t, 40, r.Reading.Score.Total)
	assert.Equal(t, 0.0, r.OverallBand)
	assert.Equal(t, "answer001", r.Reading.Answers["1"])

	persisted := f.persisted(t)
	assert.Equal(t, 980, persisted.RemainingSeconds)
	assert.Equal(t, f.clock.Now().UnixMilli(), persisted.LastPersistedAt)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, model.NotificationIncomplete, f.notifier.sent[0].Kind)
	assert.True(t, resultWrittenAtNotify)

	// Resumable: the next page load restores with a penalty.
	f.clock.Advance(5 * time.Second)
	st, err := f.m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 980-5-3, st.RemainingSeconds)
}

func TestFinalize_UnloadedResultIsBestEffort(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	f.sink.err = errors.New("db down")
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)

	res, err := f.m.Finalize(ctx, FinalizeUnloaded)
	require.NoError(t, err)
	assert.True(t, res.StateSaved)
	assert.Nil(t, res.Result)
	assert.Len(t, f.notifier.sent, 1)
}

func TestFinalize_Abandoned(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()
	_, err := f.m.Load(ctx)
	require.NoError(t, err)
	f.m.StartCountdown(ctx)

	res, err := f.m.Finalize(ctx, FinalizeAbandoned)
	require.NoError(t, err)
	assert.True(t, res.StateCleared)
	assert.Equal(t, model.ResultStatusIncomplete, res.Result.Status)
	assert.Nil(t, f.m.countdown)

	_, err = f.store.Get(ctx, config.CacheKey.SessionStateKey(candidate))
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.m.RecordAnswers(ctx, model.SectionListening, map[string]string{"1": "x"})
	assert.ErrorIs(t, err, ErrSessionClosed)

	// A new page load starts over.
	st, err := f.m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseNotStarted, st.Phase)
}

func TestFinalize_UnknownReason(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	_, err := f.m.Load(context.Background())
	require.NoError(t, err)

	_, err = f.m.Finalize(context.Background(), FinalizeReason("PAUSED"))
	assert.Error(t, err)
}

func TestParseFinalizeReason(t *testing.T) {
	r, ok := ParseFinalizeReason("UNLOADED")
	assert.True(t, ok)
	assert.Equal(t, FinalizeUnloaded, r)

	_, ok = ParseFinalizeReason("finished")
	assert.False(t, ok)
}

func TestRehydrate_NothingPersisted(t *testing.T) {
	f := newFixture(t, ProductionTimers)
	ctx := context.Background()

	assert.ErrorIs(t, f.m.Rehydrate(ctx), ErrNoSession)
	assert.False(t, f.m.Loaded())

	require.NoError(t, f.store.Set(ctx, config.CacheKey.SessionStateKey(candidate), []byte("garbage")))
	assert.ErrorIs(t, f.m.Rehydrate(ctx), ErrNoSession)

	_, err := f.store.Get(ctx, config.CacheKey.SessionStateKey(candidate))
	assert.NoError(t, err, "rehydrate must not overwrite what it cannot read")
}
