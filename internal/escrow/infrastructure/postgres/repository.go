package postgres

import (
	"context"
	"database/sql"
	"errors"

	escrow "hivegrid/internal/escrow/domain"
	"hivegrid/internal/registry"
)

// Repository persists the vault's internal books in postgres. Debits use a
// conditional UPDATE so a balance can never go negative even under
// concurrent callers.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Credit adds amount to a meter's escrow balance.
func (r *Repository) Credit(ctx context.Context, meter registry.Address, amount uint64) error {
	if r == nil || r.db == nil {
		return errors.New("escrow repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO escrow_balances (meter, balance) VALUES ($1, $2)
ON CONFLICT (meter) DO UPDATE SET balance = escrow_balances.balance + EXCLUDED.balance`,
		meter.String(), int64(amount))
	return err
}

// Debit subtracts amount from a meter's escrow balance.
func (r *Repository) Debit(ctx context.Context, meter registry.Address, amount uint64) error {
	if r == nil || r.db == nil {
		return errors.New("escrow repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE escrow_balances SET balance = balance - $2 WHERE meter = $1 AND balance >= $2`,
		meter.String(), int64(amount))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return escrow.ErrInsufficientBalance
	}
	return nil
}

// BalanceOf returns a meter's escrow balance. Unknown meters hold zero.
func (r *Repository) BalanceOf(ctx context.Context, meter registry.Address) (uint64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("escrow repo: nil db")
	}
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM escrow_balances WHERE meter = $1`, meter.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

// CreditHive adds amount to a hive owner's pool.
func (r *Repository) CreditHive(ctx context.Context, hive registry.Address, amount uint64) error {
	if r == nil || r.db == nil {
		return errors.New("escrow repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO escrow_hive_pools (hive, balance) VALUES ($1, $2)
ON CONFLICT (hive) DO UPDATE SET balance = escrow_hive_pools.balance + EXCLUDED.balance`,
		hive.String(), int64(amount))
	return err
}

// DebitHive subtracts amount from a hive owner's pool.
func (r *Repository) DebitHive(ctx context.Context, hive registry.Address, amount uint64) error {
	if r == nil || r.db == nil {
		return errors.New("escrow repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE escrow_hive_pools SET balance = balance - $2 WHERE hive = $1 AND balance >= $2`,
		hive.String(), int64(amount))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return escrow.ErrInsufficientBalance
	}
	return nil
}

// HiveBalanceOf returns a hive owner's pool balance.
func (r *Repository) HiveBalanceOf(ctx context.Context, hive registry.Address) (uint64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("escrow repo: nil db")
	}
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM escrow_hive_pools WHERE hive = $1`, hive.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

// ListBalances returns meter escrow balances in first-credit order.
func (r *Repository) ListBalances(ctx context.Context) ([]escrow.MeterBalance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("escrow repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT meter, balance FROM escrow_balances ORDER BY created_seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []escrow.MeterBalance
	for rows.Next() {
		var (
			meter   string
			balance int64
		)
		if err := rows.Scan(&meter, &balance); err != nil {
			return nil, err
		}
		out = append(out, escrow.MeterBalance{Meter: meter, Balance: uint64(balance)})
	}
	return out, rows.Err()
}

// ListHiveBalances returns hive pool balances in first-credit order.
func (r *Repository) ListHiveBalances(ctx context.Context) ([]escrow.HiveBalance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("escrow repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT hive, balance FROM escrow_hive_pools ORDER BY created_seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []escrow.HiveBalance
	for rows.Next() {
		var (
			hive    string
			balance int64
		)
		if err := rows.Scan(&hive, &balance); err != nil {
			return nil, err
		}
		out = append(out, escrow.HiveBalance{Hive: hive, Balance: uint64(balance)})
	}
	return out, rows.Err()
}
