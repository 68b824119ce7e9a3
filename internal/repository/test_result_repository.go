package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/ielts-mock/internal/model"
)

// TestResultRepository handles test result data access in PostgreSQL.
type TestResultRepository struct {
	pool *pgxpool.Pool
}

// NewTestResultRepository creates a new TestResultRepository.
func NewTestResultRepository(pool *pgxpool.Pool) *TestResultRepository {
	return &TestResultRepository{pool: pool}
}

const resultColumns = `id, candidate_id, candidate_number, candidate_name,
	reading_test_id, listening_test_id, reading, listening, writing,
	overall_band, status, note, created_at, updated_at`

func scanResult(row pgx.Row) (*model.TestResult, error) {
	var r model.TestResult
	err := row.Scan(
		&r.ID, &r.CandidateID, &r.CandidateNumber, &r.CandidateName,
		&r.ReadingTestID, &r.ListeningTestID, &r.Reading, &r.Listening, &r.Writing,
		&r.OverallBand, &r.Status, &r.Note, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Append inserts a result. The database assigns timestamps.
func (r *TestResultRepository) Append(ctx context.Context, tr *model.TestResult) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_results (id, candidate_id, candidate_number, candidate_name,
			reading_test_id, listening_test_id, reading, listening, writing,
			overall_band, status, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		tr.ID, tr.CandidateID, tr.CandidateNumber, tr.CandidateName,
		tr.ReadingTestID, tr.ListeningTestID, tr.Reading, tr.Listening, tr.Writing,
		tr.OverallBand, tr.Status, tr.Note,
	).Scan(&tr.CreatedAt, &tr.UpdatedAt)
}

// List returns every result in insertion order.
func (r *TestResultRepository) List(ctx context.Context) ([]model.TestResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM test_results ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TestResult
	for rows.Next() {
		tr, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *tr)
	}
	return results, rows.Err()
}

// Get returns one result by id.
func (r *TestResultRepository) Get(ctx context.Context, id uuid.UUID) (*model.TestResult, error) {
	tr, err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM test_results WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test result: %w", err)
	}
	return tr, nil
}

// Update overwrites the mutable fields of a result.
func (r *TestResultRepository) Update(ctx context.Context, tr *model.TestResult) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE test_results
		 SET reading = $1, listening = $2, writing = $3, overall_band = $4,
		     status = $5, note = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING updated_at`,
		tr.Reading, tr.Listening, tr.Writing, tr.OverallBand, tr.Status, tr.Note, tr.ID,
	).Scan(&tr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrResultNotFound
	}
	return err
}

// Delete removes a result.
func (r *TestResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM test_results WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrResultNotFound
	}
	return nil
}
