package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/answerkey"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/repository"
)

// AssignmentService manages which reading and listening variants each
// candidate sits.
type AssignmentService struct {
	repo    repository.AssignmentStore
	catalog *answerkey.Catalog
	log     zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(repo repository.AssignmentStore, catalog *answerkey.Catalog, log zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		repo:    repo,
		catalog: catalog,
		log:     log.With().Str("component", "assignment_service").Logger(),
	}
}

// Resolve returns the candidate's assignment, or the default variants when
// none is stored or the lookup fails.
func (s *AssignmentService) Resolve(ctx context.Context, candidateID string) model.TestAssignment {
	a, err := s.repo.Get(ctx, candidateID)
	if err == nil {
		return *a
	}
	if !errors.Is(err, repository.ErrAssignmentNotFound) {
		s.log.Warn().Err(err).Str("candidate_id", candidateID).Msg("Assignment lookup failed, using defaults")
	}
	return model.TestAssignment{
		CandidateID:     candidateID,
		ReadingTestID:   model.DefaultTestID,
		ListeningTestID: model.DefaultTestID,
	}
}

// Get returns the stored assignment.
func (s *AssignmentService) Get(ctx context.Context, candidateID string) (*model.TestAssignment, error) {
	return s.repo.Get(ctx, candidateID)
}

// List returns every stored assignment.
func (s *AssignmentService) List(ctx context.Context) ([]model.TestAssignment, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if list == nil {
		list = []model.TestAssignment{}
	}
	return list, nil
}

// Upsert assigns variants after checking both exist in the catalog.
func (s *AssignmentService) Upsert(ctx context.Context, candidateID string, req model.UpsertAssignmentRequest) (*model.TestAssignment, error) {
	if !s.catalog.HasVariant(model.SectionReading, req.ReadingTestID) {
		return nil, &answerkey.UnknownTestVariantError{Section: model.SectionReading, TestID: req.ReadingTestID}
	}
	if !s.catalog.HasVariant(model.SectionListening, req.ListeningTestID) {
		return nil, &answerkey.UnknownTestVariantError{Section: model.SectionListening, TestID: req.ListeningTestID}
	}

	a := &model.TestAssignment{
		CandidateID:     candidateID,
		ReadingTestID:   req.ReadingTestID,
		ListeningTestID: req.ListeningTestID,
	}
	if err := s.repo.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("upsert assignment: %w", err)
	}

	s.log.Info().
		Str("candidate_id", candidateID).
		Int("reading_test_id", a.ReadingTestID).
		Int("listening_test_id", a.ListeningTestID).
		Msg("Tests assigned")
	return a, nil
}

// Delete removes an assignment; the candidate falls back to the defaults.
func (s *AssignmentService) Delete(ctx context.Context, candidateID string) error {
	return s.repo.Delete(ctx, candidateID)
}
