package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/answerkey"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

// EvaluationService scores stored answers against the answer key of the
// assigned test variant.
type EvaluationService struct {
	keys answerkey.Provider
	log  zerolog.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(keys answerkey.Provider, log zerolog.Logger) *EvaluationService {
	return &EvaluationService{
		keys: keys,
		log:  log.With().Str("component", "evaluation_service").Logger(),
	}
}

// EvaluateSection looks up the key and scores the answers with the given
// band table. An unknown variant, or a section without a key, fails with
// answerkey.ErrUnknownTestVariant.
func (s *EvaluationService) EvaluateSection(ctx context.Context, section model.Section, testID int, answers scoring.Answers, table scoring.BandTable) (scoring.ScoreResult, error) {
	if !section.Scorable() {
		return scoring.ScoreResult{}, &answerkey.UnknownTestVariantError{Section: section, TestID: testID}
	}

	key, err := s.keys.AnswerKey(ctx, section, testID)
	if err != nil {
		return scoring.ScoreResult{}, err
	}

	res := scoring.Score(answers, key, table)
	s.log.Debug().
		Str("section", string(section)).
		Int("test_id", testID).
		Str("table", table.String()).
		Int("correct", res.RawCorrectCount).
		Int("total", res.Total).
		Float64("band", res.Band).
		Msg("Section evaluated")
	return res, nil
}

// SectionTotal returns the number of questions in a variant's key.
func (s *EvaluationService) SectionTotal(ctx context.Context, section model.Section, testID int) (int, error) {
	res, err := s.EvaluateSection(ctx, section, testID, nil, scoring.BandTableCoarse)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}
