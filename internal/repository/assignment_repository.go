package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/ielts-mock/internal/model"
)

// AssignmentRepository handles test assignment data access in PostgreSQL.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

func (r *AssignmentRepository) Get(ctx context.Context, candidateID string) (*model.TestAssignment, error) {
	a := &model.TestAssignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT candidate_id, reading_test_id, listening_test_id, updated_at
		 FROM test_assignments WHERE candidate_id = $1`, candidateID,
	).Scan(&a.CandidateID, &a.ReadingTestID, &a.ListeningTestID, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AssignmentRepository) List(ctx context.Context) ([]model.TestAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id, reading_test_id, listening_test_id, updated_at
		 FROM test_assignments ORDER BY candidate_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TestAssignment
	for rows.Next() {
		var a model.TestAssignment
		if err := rows.Scan(&a.CandidateID, &a.ReadingTestID, &a.ListeningTestID, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) Upsert(ctx context.Context, a *model.TestAssignment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_assignments (candidate_id, reading_test_id, listening_test_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (candidate_id) DO UPDATE
		 SET reading_test_id = EXCLUDED.reading_test_id,
		     listening_test_id = EXCLUDED.listening_test_id,
		     updated_at = NOW()
		 RETURNING updated_at`,
		a.CandidateID, a.ReadingTestID, a.ListeningTestID,
	).Scan(&a.UpdatedAt)
}

func (r *AssignmentRepository) Delete(ctx context.Context, candidateID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM test_assignments WHERE candidate_id = $1`, candidateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}
