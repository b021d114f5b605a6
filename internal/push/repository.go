package push

import (
	"context"
	"sync"
)

type Repository interface {
	// Upsert stores sub keyed by endpoint. An endpoint already held by the
	// same user is left alone; one held by another user is rebound to
	// sub.UserID. It reports whether anything was written.
	Upsert(ctx context.Context, sub Subscription) (bool, error)
	// DeleteByEndpoint is a no-op when the endpoint is unknown.
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	ListByUserIDs(ctx context.Context, userIDs []string) ([]Subscription, error)
}

type InMemoryRepository struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{subs: make(map[string]Subscription)}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.subs[sub.Endpoint]
	if ok && existing.UserID == sub.UserID {
		return false, nil
	}
	if ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	r.subs[sub.Endpoint] = sub
	return true, nil
}

func (r *InMemoryRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, endpoint)
	return nil
}

func (r *InMemoryRepository) ListByUserIDs(ctx context.Context, userIDs []string) ([]Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	out := make([]Subscription, 0)
	for _, s := range r.subs {
		if _, ok := wanted[s.UserID]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Len reports the number of stored subscriptions.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
