package token

import (
	"context"
	"sync"

	"hivegrid/internal/registry"
)

type allowanceKey struct {
	owner   registry.Address
	spender registry.Address
}

// MemoryLedger is an in-process token ledger with standard allowance
// semantics. It stands in for the external stable-token ledger in the
// single-node deployment and in tests.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[registry.Address]uint64
	allowances map[allowanceKey]uint64
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[registry.Address]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// Mint credits freshly issued tokens to an account. Used by deployment-time
// seeding only.
func (l *MemoryLedger) Mint(account registry.Address, amount uint64) {
	l.mu.Lock()
	l.balances[account] += amount
	l.mu.Unlock()
}

// Approve sets the allowance of spender over owner's tokens.
func (l *MemoryLedger) Approve(ctx context.Context, owner, spender registry.Address, amount uint64) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == 0 {
		delete(l.allowances, allowanceKey{owner, spender})
		return nil
	}
	l.allowances[allowanceKey{owner, spender}] = amount
	return nil
}

// Allowance returns the remaining allowance of spender over owner.
func (l *MemoryLedger) Allowance(ctx context.Context, owner, spender registry.Address) (uint64, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{owner, spender}], nil
}

// TransferFrom moves amount from owner to recipient, spending spender's
// allowance.
func (l *MemoryLedger) TransferFrom(ctx context.Context, spender, owner, recipient registry.Address, amount uint64) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey{owner, spender}
	if l.allowances[key] < amount {
		return ErrInsufficientAllowance
	}
	if l.balances[owner] < amount {
		return ErrInsufficientBalance
	}
	l.allowances[key] -= amount
	if l.allowances[key] == 0 {
		delete(l.allowances, key)
	}
	l.balances[owner] -= amount
	l.balances[recipient] += amount
	return nil
}

// Transfer moves amount from sender to recipient.
func (l *MemoryLedger) Transfer(ctx context.Context, sender, recipient registry.Address, amount uint64) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[sender] < amount {
		return ErrInsufficientBalance
	}
	l.balances[sender] -= amount
	l.balances[recipient] += amount
	return nil
}

// BalanceOf returns the token balance of an account.
func (l *MemoryLedger) BalanceOf(ctx context.Context, account registry.Address) (uint64, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// TotalSupply returns the sum of all balances. Used by conservation checks
// in tests.
func (l *MemoryLedger) TotalSupply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, balance := range l.balances {
		total += balance
	}
	return total
}
