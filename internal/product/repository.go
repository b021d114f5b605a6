package product

import (
	"context"
	"sync"
)

type Repository interface {
	// CountByIDs returns how many distinct ids in the slice exist.
	CountByIDs(ctx context.Context, ids []string) (int, error)
	Count(ctx context.Context) (int, error)
	// FindSummaries returns summaries for the ids that exist, in no
	// particular order. Unknown ids are skipped.
	FindSummaries(ctx context.Context, ids []string) ([]Summary, error)
}

// InMemoryRepository is a simple in-memory implementation useful for tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Product
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{storage: make(map[string]Product, len(seed))}
	for _, p := range seed {
		r.storage[p.ID] = p
	}
	return r
}

func (r *InMemoryRepository) CountByIDs(ctx context.Context, ids []string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.storage[id]; ok {
			seen[id] = struct{}{}
		}
	}
	return len(seen), nil
}

func (r *InMemoryRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.storage), nil
}

func (r *InMemoryRepository) FindSummaries(ctx context.Context, ids []string) ([]Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Summary{}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		p, ok := r.storage[id]
		if _, dup := seen[id]; !ok || dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p.Summary())
	}
	return out, nil
}
