package ordermode

import (
	"context"
	"sync"
	"time"
)

type Repository interface {
	// GetOrCreate returns the settings record, creating the default one if
	// none exists. Safe under concurrent first access.
	GetOrCreate(ctx context.Context, now time.Time) (OrderMode, error)
	// Update applies p to the record, creating it first when missing.
	Update(ctx context.Context, p Patch, now time.Time) (OrderMode, error)
}

type InMemoryRepository struct {
	mu      sync.Mutex
	mode    *OrderMode
	created int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) GetOrCreate(ctx context.Context, now time.Time) (OrderMode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(now), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, p Patch, now time.Time) (OrderMode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := p.apply(r.getOrCreateLocked(now), now)
	r.mode = &m
	return m, nil
}

// Created reports how many times the default record was inserted.
func (r *InMemoryRepository) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

func (r *InMemoryRepository) getOrCreateLocked(now time.Time) OrderMode {
	if r.mode == nil {
		m := Default(now)
		r.mode = &m
		r.created++
	}
	return *r.mode
}
