package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/store"
)

// KVResultRepository keeps the whole result collection as one JSON array
// under a single store key.
type KVResultRepository struct {
	mu    sync.Mutex
	store store.Store
	key   string
}

// NewKVResultRepository creates a KVResultRepository over s.
func NewKVResultRepository(s store.Store) *KVResultRepository {
	return &KVResultRepository{store: s, key: config.CacheKey.ResultsKey()}
}

func (r *KVResultRepository) load(ctx context.Context) ([]model.TestResult, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var results []model.TestResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}

func (r *KVResultRepository) save(ctx context.Context, results []model.TestResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return r.store.Set(ctx, r.key, raw)
}

// Append adds a result, assigning an id and timestamps when unset.
func (r *KVResultRepository) Append(ctx context.Context, tr *model.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.load(ctx)
	if err != nil {
		return err
	}

	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	now := time.Now()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = now
	}
	tr.UpdatedAt = now

	return r.save(ctx, append(results, *tr))
}

// List returns every result in append order.
func (r *KVResultRepository) List(ctx context.Context) ([]model.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Get returns one result by id.
func (r *KVResultRepository) Get(ctx context.Context, id uuid.UUID) (*model.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].ID == id {
			return &results[i], nil
		}
	}
	return nil, ErrResultNotFound
}

// Update replaces a result in place, keeping its position.
func (r *KVResultRepository) Update(ctx context.Context, tr *model.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range results {
		if results[i].ID == tr.ID {
			tr.UpdatedAt = time.Now()
			results[i] = *tr
			return r.save(ctx, results)
		}
	}
	return ErrResultNotFound
}

// Delete removes a result.
func (r *KVResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	results, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range results {
		if results[i].ID == id {
			return r.save(ctx, append(results[:i], results[i+1:]...))
		}
	}
	return ErrResultNotFound
}
