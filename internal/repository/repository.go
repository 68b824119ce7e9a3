package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stemsi/ielts-mock/internal/model"
)

var (
	ErrResultNotFound     = errors.New("test result not found")
	ErrAssignmentNotFound = errors.New("test assignment not found")
)

// ResultStore is the append-mostly collection of test results. List
// returns results in the order they were appended.
type ResultStore interface {
	Append(ctx context.Context, r *model.TestResult) error
	List(ctx context.Context) ([]model.TestResult, error)
	Get(ctx context.Context, id uuid.UUID) (*model.TestResult, error)
	Update(ctx context.Context, r *model.TestResult) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AssignmentStore holds the per-candidate test variant assignments.
type AssignmentStore interface {
	Get(ctx context.Context, candidateID string) (*model.TestAssignment, error)
	List(ctx context.Context) ([]model.TestAssignment, error)
	Upsert(ctx context.Context, a *model.TestAssignment) error
	Delete(ctx context.Context, candidateID string) error
}
