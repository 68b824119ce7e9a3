package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/store"
)

// KVAssignmentRepository keeps assignments as one JSON object keyed by
// candidate id.
type KVAssignmentRepository struct {
	mu    sync.Mutex
	store store.Store
	key   string
}

// NewKVAssignmentRepository creates a KVAssignmentRepository over s.
func NewKVAssignmentRepository(s store.Store) *KVAssignmentRepository {
	return &KVAssignmentRepository{store: s, key: config.CacheKey.AssignmentsKey()}
}

func (r *KVAssignmentRepository) load(ctx context.Context) (map[string]model.TestAssignment, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]model.TestAssignment{}, nil
	}
	if err != nil {
		return nil, err
	}

	m := map[string]model.TestAssignment{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}
	return m, nil
}

func (r *KVAssignmentRepository) save(ctx context.Context, m map[string]model.TestAssignment) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}
	return r.store.Set(ctx, r.key, raw)
}

func (r *KVAssignmentRepository) Get(ctx context.Context, candidateID string) (*model.TestAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	a, ok := m[candidateID]
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	return &a, nil
}

// List returns assignments ordered by candidate id.
func (r *KVAssignmentRepository) List(ctx context.Context) ([]model.TestAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.TestAssignment, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateID < out[j].CandidateID })
	return out, nil
}

func (r *KVAssignmentRepository) Upsert(ctx context.Context, a *model.TestAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load(ctx)
	if err != nil {
		return err
	}
	a.UpdatedAt = time.Now()
	m[a.CandidateID] = *a
	return r.save(ctx, m)
}

func (r *KVAssignmentRepository) Delete(ctx context.Context, candidateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := m[candidateID]; !ok {
		return ErrAssignmentNotFound
	}
	delete(m, candidateID)
	return r.save(ctx, m)
}
