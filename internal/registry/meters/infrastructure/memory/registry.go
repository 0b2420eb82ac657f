package memory

import (
	"context"
	"sync"

	"hivegrid/internal/registry"
	meters "hivegrid/internal/registry/meters/domain"
)

// Registry is an in-memory meter registry. It is the authoritative backend
// for the single-node execution model; all preconditions are checked under
// the lock before any element of a batch is applied.
type Registry struct {
	mu   sync.RWMutex
	data map[registry.Address]meters.Meter
	keys []registry.Address
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{data: make(map[registry.Address]meters.Meter)}
}

// RegisterBatch inserts all records or none.
func (r *Registry) RegisterBatch(ctx context.Context, batch []meters.Meter) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[registry.Address]struct{}, len(batch))
	for _, m := range batch {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, dup := seen[m.Key]; dup {
			return meters.ErrAlreadyRegistered
		}
		if _, exists := r.data[m.Key]; exists {
			return meters.ErrAlreadyRegistered
		}
		seen[m.Key] = struct{}{}
	}
	for _, m := range batch {
		r.data[m.Key] = m
		r.keys = append(r.keys, m.Key)
	}
	return nil
}

// UpdateBatch overwrites all fields of all records or none.
func (r *Registry) UpdateBatch(ctx context.Context, batch []meters.Meter) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range batch {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, exists := r.data[m.Key]; !exists {
			return meters.ErrNotRegistered
		}
	}
	for _, m := range batch {
		r.data[m.Key] = m
	}
	return nil
}

// RemoveBatch fully erases all records or none. A removed key is
// indistinguishable from one that was never registered.
func (r *Registry) RemoveBatch(ctx context.Context, keys []registry.Address) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		if _, exists := r.data[key]; !exists {
			return meters.ErrNotRegistered
		}
	}
	for _, key := range keys {
		delete(r.data, key)
		for i, existing := range r.keys {
			if existing == key {
				r.keys = append(r.keys[:i], r.keys[i+1:]...)
				break
			}
		}
	}
	return nil
}

// AssignHive sets the hive link on all keys or none. The hive itself is not
// required to exist; pass the zero address to unassign.
func (r *Registry) AssignHive(ctx context.Context, keys []registry.Address, hive registry.Address) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		if _, exists := r.data[key]; !exists {
			return meters.ErrNotRegistered
		}
	}
	for _, key := range keys {
		m := r.data[key]
		m.Hive = hive
		r.data[key] = m
	}
	return nil
}

// SetEndUsers sets the end-user wallet on all keys or none.
func (r *Registry) SetEndUsers(ctx context.Context, keys []registry.Address, users []registry.Address) error {
	_ = ctx
	if len(keys) != len(users) {
		return meters.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		if _, exists := r.data[key]; !exists {
			return meters.ErrNotRegistered
		}
	}
	for i, key := range keys {
		m := r.data[key]
		m.User = users[i]
		r.data[key] = m
	}
	return nil
}

// IsRegistered reports key presence.
func (r *Registry) IsRegistered(ctx context.Context, key registry.Address) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.data[key]
	return exists, nil
}

// Get returns a copy of the record for key.
func (r *Registry) Get(ctx context.Context, key registry.Address) (*meters.Meter, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, exists := r.data[key]
	if !exists {
		return nil, meters.ErrNotRegistered
	}
	return &m, nil
}

// List returns all records in registration order.
func (r *Registry) List(ctx context.Context) ([]meters.Meter, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]meters.Meter, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.data[key])
	}
	return out, nil
}
