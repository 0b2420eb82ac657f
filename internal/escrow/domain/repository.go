package escrow

import (
	"context"

	"hivegrid/internal/registry"
)

// Repository keeps the vault's internal books: per-meter escrow balances and
// per-hive owner pools. Debits return ErrInsufficientBalance rather than
// going negative.
type Repository interface {
	Credit(ctx context.Context, meter registry.Address, amount uint64) error
	Debit(ctx context.Context, meter registry.Address, amount uint64) error
	BalanceOf(ctx context.Context, meter registry.Address) (uint64, error)

	CreditHive(ctx context.Context, hive registry.Address, amount uint64) error
	DebitHive(ctx context.Context, hive registry.Address, amount uint64) error
	HiveBalanceOf(ctx context.Context, hive registry.Address) (uint64, error)

	ListBalances(ctx context.Context) ([]MeterBalance, error)
	ListHiveBalances(ctx context.Context) ([]HiveBalance, error)
}
