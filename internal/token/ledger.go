package token

import (
	"context"
	"errors"

	"hivegrid/internal/registry"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance is returned when a transferFrom exceeds the
	// spender's allowance.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

// Ledger is the external fungible settlement-token ledger. It follows the
// standard allowance model: a holder approves a spender, and the spender
// pulls funds with TransferFrom. The ledger is a collaborator, not part of
// the settlement engine; this interface is its boundary.
//
// The caller (owner or spender) is passed explicitly because the engine,
// not the ledger, owns the ambient caller identity.
type Ledger interface {
	// Approve sets the allowance of spender over owner's tokens,
	// overwriting any previous allowance.
	Approve(ctx context.Context, owner, spender registry.Address, amount uint64) error
	// Allowance returns the remaining allowance of spender over owner.
	Allowance(ctx context.Context, owner, spender registry.Address) (uint64, error)
	// TransferFrom moves amount from owner to recipient, spending
	// spender's allowance.
	TransferFrom(ctx context.Context, spender, owner, recipient registry.Address, amount uint64) error
	// Transfer moves amount from sender to recipient.
	Transfer(ctx context.Context, sender, recipient registry.Address, amount uint64) error
	// BalanceOf returns the token balance of an account.
	BalanceOf(ctx context.Context, account registry.Address) (uint64, error)
}
