package memory

import (
	"context"
	"sync"

	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
)

// Registry is an in-memory hive registry.
type Registry struct {
	mu   sync.RWMutex
	data map[registry.Address]hives.Hive
	keys []registry.Address
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{data: make(map[registry.Address]hives.Hive)}
}

// Add appends a hive to the enumerable list.
func (r *Registry) Add(ctx context.Context, hive hives.Hive) error {
	_ = ctx
	if err := hive.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[hive.Key]; exists {
		return hives.ErrAlreadyExists
	}
	r.data[hive.Key] = hive
	r.keys = append(r.keys, hive.Key)
	return nil
}

// Drop removes a hive with swap-and-pop compaction of the address list.
func (r *Registry) Drop(ctx context.Context, key registry.Address) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[key]; !exists {
		return hives.ErrNotFound
	}
	delete(r.data, key)
	last := len(r.keys) - 1
	for i, existing := range r.keys {
		if existing == key {
			r.keys[i] = r.keys[last]
			r.keys = r.keys[:last]
			break
		}
	}
	return nil
}

// ChangeOwner updates the owner wallet of an existing hive.
func (r *Registry) ChangeOwner(ctx context.Context, key, newOwner registry.Address) error {
	_ = ctx
	if newOwner.IsZero() {
		return hives.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	hive, exists := r.data[key]
	if !exists {
		return hives.ErrNotFound
	}
	hive.Owner = newOwner
	r.data[key] = hive
	return nil
}

// List returns the enumerable hive keys. Order is not stable across drops.
func (r *Registry) List(ctx context.Context) ([]registry.Address, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]registry.Address(nil), r.keys...), nil
}

// Info returns the (key, owner) pair for a hive.
func (r *Registry) Info(ctx context.Context, key registry.Address) (*hives.Hive, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	hive, exists := r.data[key]
	if !exists {
		return nil, hives.ErrNotFound
	}
	return &hive, nil
}

// IsHive reports key presence.
func (r *Registry) IsHive(ctx context.Context, key registry.Address) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.data[key]
	return exists, nil
}
