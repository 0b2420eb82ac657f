package memory

import (
	"context"
	"sync"

	tariffs "hivegrid/internal/registry/tariffs/domain"
)

// Registry is an in-memory tariff registry.
type Registry struct {
	mu    sync.RWMutex
	data  map[string]tariffs.Tariff
	names []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{data: make(map[string]tariffs.Tariff)}
}

// AddBatch inserts all tariffs or none.
func (r *Registry) AddBatch(ctx context.Context, batch []tariffs.Tariff) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(batch))
	for _, t := range batch {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return tariffs.ErrAlreadyExists
		}
		if _, exists := r.data[t.Name]; exists {
			return tariffs.ErrAlreadyExists
		}
		seen[t.Name] = struct{}{}
	}
	for _, t := range batch {
		r.data[t.Name] = t
		r.names = append(r.names, t.Name)
	}
	return nil
}

// UpdateBatch overwrites all tariffs or none.
func (r *Registry) UpdateBatch(ctx context.Context, batch []tariffs.Tariff) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range batch {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, exists := r.data[t.Name]; !exists {
			return tariffs.ErrNotFound
		}
	}
	for _, t := range batch {
		r.data[t.Name] = t
	}
	return nil
}

// RemoveBatch removes all tariffs or none.
func (r *Registry) RemoveBatch(ctx context.Context, names []string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, exists := r.data[name]; !exists {
			return tariffs.ErrNotFound
		}
	}
	for _, name := range names {
		delete(r.data, name)
		for i, existing := range r.names {
			if existing == name {
				r.names = append(r.names[:i], r.names[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Get returns the tariff for name.
func (r *Registry) Get(ctx context.Context, name string) (*tariffs.Tariff, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, exists := r.data[name]
	if !exists {
		return nil, tariffs.ErrNotFound
	}
	return &t, nil
}

// IsRegistered reports name presence.
func (r *Registry) IsRegistered(ctx context.Context, name string) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.data[name]
	return exists, nil
}

// List returns all tariffs in insertion order.
func (r *Registry) List(ctx context.Context) ([]tariffs.Tariff, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tariffs.Tariff, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.data[name])
	}
	return out, nil
}
