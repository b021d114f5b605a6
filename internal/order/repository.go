package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Repository interface {
	// Create stores a new order. A reused transaction id yields
	// ErrDuplicateTransaction.
	Create(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	// List returns the orders matching f, newest first.
	List(ctx context.Context, f ListFilter) ([]Order, error)
	TransactionExists(ctx context.Context, transactionID string) (bool, error)
	// Update applies p and bumps UpdatedAt in a single write.
	Update(ctx context.Context, id string, p Patch, now time.Time) (Order, error)
	Delete(ctx context.Context, id string) error
	// SetOTP replaces any outstanding code digest for the order.
	SetOTP(ctx context.Context, id, hash string, issuedAt time.Time) error
	// ClearOTP removes the digest only if it still equals hash, and reports
	// whether it did. Two verifiers racing on one code see one true.
	ClearOTP(ctx context.Context, id, hash string, now time.Time) (bool, error)
	// Count counts orders in the given delivery status; "" counts all.
	Count(ctx context.Context, status DeliveryStatus) (int, error)
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{orders: make(map[string]Order)}
}

func (r *InMemoryRepository) Create(ctx context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.orders {
		if existing.TransactionID == o.TransactionID {
			return Order{}, ErrDuplicateTransaction
		}
	}
	o.Items = append([]Item(nil), o.Items...)
	r.orders[o.ID] = o
	return o, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		if f.matches(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, p Patch, now time.Time) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o = p.apply(o, now)
	r.orders[id] = o
	return o, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *InMemoryRepository) SetOTP(ctx context.Context, id, hash string, issuedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.OTPHash = &hash
	o.OTPIssuedAt = &issuedAt
	o.UpdatedAt = issuedAt
	r.orders[id] = o
	return nil
}

func (r *InMemoryRepository) ClearOTP(ctx context.Context, id, hash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.OTPHash == nil || *o.OTPHash != hash {
		return false, nil
	}
	o.OTPHash = nil
	o.OTPIssuedAt = nil
	o.UpdatedAt = now
	r.orders[id] = o
	return true, nil
}

func (r *InMemoryRepository) Count(ctx context.Context, status DeliveryStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if status == "" {
		return len(r.orders), nil
	}
	n := 0
	for _, o := range r.orders {
		if o.DeliveryStatus == status {
			n++
		}
	}
	return n, nil
}
