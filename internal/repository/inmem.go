package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/quantapay/gateway/internal/domain"
)

// InMemoryRepository is the default store. Records are deep-copied in
// and out so callers never share mutable state with the map.
type InMemoryRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *InMemoryRepository) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.ID]; exists {
		return fmt.Errorf("Create: %w", domain.ErrDuplicatePayment)
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[p.ID]; !ok {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context, f Filter) ([]*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range r.payments {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
