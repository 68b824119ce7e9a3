package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/notify"
	"github.com/stemsi/ielts-mock/internal/repository"
	"github.com/stemsi/ielts-mock/internal/scoring"
	"github.com/stemsi/ielts-mock/internal/session"
)

// DeleteConfirmation is the literal token an administrator must send to
// delete a result.
const DeleteConfirmation = "DELETE"

// defaultSectionTotal caps manual raw scores when the variant's key is
// unknown.
const defaultSectionTotal = 40

var (
	ErrConfirmationRequired = errors.New(`confirmation must be the literal "DELETE"`)
	ErrScoreOutOfRange      = errors.New("raw score exceeds section total")
	ErrInvalidBand          = errors.New("band must be 0 to 9 in steps of 0.5")
)

// ResultService is the administrator's view of the result collection.
type ResultService struct {
	repo     repository.ResultStore
	eval     *EvaluationService
	notifier session.Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// NewResultService creates a new ResultService. notifier may be nil.
func NewResultService(repo repository.ResultStore, eval *EvaluationService, notifier session.Notifier, log zerolog.Logger) *ResultService {
	return &ResultService{
		repo:     repo,
		eval:     eval,
		notifier: notifier,
		now:      time.Now,
		log:      log.With().Str("component", "result_service").Logger(),
	}
}

// List returns results filtered by q.Search and ordered by q.Sort (newest
// first by default).
func (s *ResultService) List(ctx context.Context, q model.ResultQuery) ([]model.TestResult, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	results := make([]model.TestResult, 0, len(all))
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, r := range all {
		if needle == "" || matchesSearch(&r, needle) {
			results = append(results, r)
		}
	}

	sortResults(results, q.Sort)
	return results, nil
}

func matchesSearch(r *model.TestResult, needle string) bool {
	fields := []string{
		r.CandidateID,
		r.CandidateName,
		r.CandidateNumber,
		r.CreatedAt.Format("2006-01-02"),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func sortResults(results []model.TestResult, by model.ResultSort) {
	var less func(a, b *model.TestResult) bool
	switch by {
	case model.ResultSortOldest:
		less = func(a, b *model.TestResult) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case model.ResultSortCandidate:
		less = func(a, b *model.TestResult) bool {
			return strings.ToLower(displayName(a)) < strings.ToLower(displayName(b))
		}
	case model.ResultSortCandidateNumber:
		less = func(a, b *model.TestResult) bool { return a.CandidateNumber < b.CandidateNumber }
	case model.ResultSortOverall:
		less = func(a, b *model.TestResult) bool { return a.OverallBand > b.OverallBand }
	default:
		less = func(a, b *model.TestResult) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(results, func(i, j int) bool { return less(&results[i], &results[j]) })
}

func displayName(r *model.TestResult) string {
	if r.CandidateName != "" {
		return r.CandidateName
	}
	return r.CandidateID
}

// Get returns a single result.
func (s *ResultService) Get(ctx context.Context, id uuid.UUID) (*model.TestResult, error) {
	return s.repo.Get(ctx, id)
}

// AutoScore recomputes reading and listening from the stored answers with
// the coarse table and refreshes the overall band, writing included.
func (s *ResultService) AutoScore(ctx context.Context, id uuid.UUID) (*model.TestResult, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reading, err := s.eval.EvaluateSection(ctx, model.SectionReading, r.ReadingTestID, r.Reading.Answers, scoring.BandTableCoarse)
	if err != nil {
		return nil, fmt.Errorf("score reading: %w", err)
	}
	listening, err := s.eval.EvaluateSection(ctx, model.SectionListening, r.ListeningTestID, r.Listening.Answers, scoring.BandTableCoarse)
	if err != nil {
		return nil, fmt.Errorf("score listening: %w", err)
	}

	r.Reading.Score = reading
	r.Listening.Score = listening
	return s.saveScored(ctx, r, "auto")
}

// Rescore applies an administrator's raw counts and writing band. Raw
// counts are checked against the section total; bands are derived with the
// coarse table.
func (s *ResultService) Rescore(ctx context.Context, id uuid.UUID, req model.RescoreRequest) (*model.TestResult, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ReadingCorrect != nil {
		total := s.sectionTotal(ctx, model.SectionReading, r.ReadingTestID, r.Reading.Score.Total)
		if *req.ReadingCorrect < 0 || *req.ReadingCorrect > total {
			return nil, fmt.Errorf("reading %d/%d: %w", *req.ReadingCorrect, total, ErrScoreOutOfRange)
		}
		r.Reading.Score = scoring.NewScoreResult(*req.ReadingCorrect, total, scoring.BandTableCoarse)
	}
	if req.ListeningCorrect != nil {
		total := s.sectionTotal(ctx, model.SectionListening, r.ListeningTestID, r.Listening.Score.Total)
		if *req.ListeningCorrect < 0 || *req.ListeningCorrect > total {
			return nil, fmt.Errorf("listening %d/%d: %w", *req.ListeningCorrect, total, ErrScoreOutOfRange)
		}
		r.Listening.Score = scoring.NewScoreResult(*req.ListeningCorrect, total, scoring.BandTableCoarse)
	}
	if req.WritingBand != nil {
		if !scoring.IsValidBand(*req.WritingBand) {
			return nil, ErrInvalidBand
		}
		r.Writing.Band = *req.WritingBand
	}

	return s.saveScored(ctx, r, "manual")
}

func (s *ResultService) sectionTotal(ctx context.Context, sec model.Section, testID, stored int) int {
	if stored > 0 {
		return stored
	}
	total, err := s.eval.SectionTotal(ctx, sec, testID)
	if err != nil || total == 0 {
		return defaultSectionTotal
	}
	return total
}

func (s *ResultService) saveScored(ctx context.Context, r *model.TestResult, how string) (*model.TestResult, error) {
	r.OverallBand = scoring.OverallBand(r.Reading.Score.Band, r.Listening.Score.Band, scoring.WithWriting(r.Writing.Band))
	r.Note = ""

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update result: %w", err)
	}

	s.log.Info().
		Str("result_id", r.ID.String()).
		Str("scoring", how).
		Float64("overall_band", r.OverallBand).
		Msg("Result scored")

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Rescore(r))
	}
	return r, nil
}

// Delete removes a result only when confirmation is exactly "DELETE".
// Anything else leaves the collection untouched.
func (s *ResultService) Delete(ctx context.Context, id uuid.UUID, confirmation string) error {
	if confirmation != DeleteConfirmation {
		return ErrConfirmationRequired
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("result_id", id.String()).Msg("Result deleted")
	return nil
}

// Stats summarizes the collection.
func (s *ResultService) Stats(ctx context.Context) (*model.ResultStats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	stats := &model.ResultStats{Total: len(all)}
	if len(all) == 0 {
		return stats, nil
	}

	weekAgo := s.now().AddDate(0, 0, -7)
	var reading, listening, writing, overall float64
	for _, r := range all {
		switch r.Status {
		case model.ResultStatusCompleted:
			stats.Completed++
		case model.ResultStatusIncomplete:
			stats.Incomplete++
		}
		if !r.CreatedAt.Before(weekAgo) {
			stats.LastWeek++
		}
		reading += r.Reading.Score.Band
		listening += r.Listening.Score.Band
		writing += r.Writing.Band
		overall += r.OverallBand
	}

	n := float64(len(all))
	stats.AverageReading = round2(reading / n)
	stats.AverageListening = round2(listening / n)
	stats.AverageWriting = round2(writing / n)
	stats.AverageOverall = round2(overall / n)
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
