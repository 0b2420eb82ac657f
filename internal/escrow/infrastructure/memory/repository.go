package memory

import (
	"context"
	"sync"

	escrow "hivegrid/internal/escrow/domain"
	"hivegrid/internal/registry"
)

// Repository is the in-memory escrow book. All debits check the balance
// before applying, so balances never go negative.
type Repository struct {
	mu         sync.RWMutex
	balances   map[registry.Address]uint64
	meterOrder []registry.Address
	pools      map[registry.Address]uint64
	hiveOrder  []registry.Address
}

// NewRepository constructs an empty escrow book.
func NewRepository() *Repository {
	return &Repository{
		balances: make(map[registry.Address]uint64),
		pools:    make(map[registry.Address]uint64),
	}
}

// Credit adds amount to a meter's escrow balance.
func (r *Repository) Credit(ctx context.Context, meter registry.Address, amount uint64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[meter]; !ok {
		r.meterOrder = append(r.meterOrder, meter)
	}
	r.balances[meter] += amount
	return nil
}

// Debit subtracts amount from a meter's escrow balance.
func (r *Repository) Debit(ctx context.Context, meter registry.Address, amount uint64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[meter] < amount {
		return escrow.ErrInsufficientBalance
	}
	r.balances[meter] -= amount
	return nil
}

// BalanceOf returns a meter's escrow balance. Unknown meters hold zero.
func (r *Repository) BalanceOf(ctx context.Context, meter registry.Address) (uint64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balances[meter], nil
}

// CreditHive adds amount to a hive owner's pool.
func (r *Repository) CreditHive(ctx context.Context, hive registry.Address, amount uint64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[hive]; !ok {
		r.hiveOrder = append(r.hiveOrder, hive)
	}
	r.pools[hive] += amount
	return nil
}

// DebitHive subtracts amount from a hive owner's pool.
func (r *Repository) DebitHive(ctx context.Context, hive registry.Address, amount uint64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pools[hive] < amount {
		return escrow.ErrInsufficientBalance
	}
	r.pools[hive] -= amount
	return nil
}

// HiveBalanceOf returns a hive owner's pool balance.
func (r *Repository) HiveBalanceOf(ctx context.Context, hive registry.Address) (uint64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools[hive], nil
}

// ListBalances returns meter balances in first-credit order.
func (r *Repository) ListBalances(ctx context.Context) ([]escrow.MeterBalance, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]escrow.MeterBalance, 0, len(r.meterOrder))
	for _, meter := range r.meterOrder {
		out = append(out, escrow.MeterBalance{Meter: meter.String(), Balance: r.balances[meter]})
	}
	return out, nil
}

// ListHiveBalances returns hive pool balances in first-credit order.
func (r *Repository) ListHiveBalances(ctx context.Context) ([]escrow.HiveBalance, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]escrow.HiveBalance, 0, len(r.hiveOrder))
	for _, hive := range r.hiveOrder {
		out = append(out, escrow.HiveBalance{Hive: hive.String(), Balance: r.pools[hive]})
	}
	return out, nil
}
