package postgres

import (
	"context"
	"database/sql"
	"errors"

	"hivegrid/internal/registry"
	hives "hivegrid/internal/registry/hives/domain"
)

// Repository persists hive records in postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add inserts a hive.
func (r *Repository) Add(ctx context.Context, hive hives.Hive) error {
	if r == nil || r.db == nil {
		return errors.New("hive repo: nil db")
	}
	if err := hive.Validate(); err != nil {
		return err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM hives WHERE key = $1)`, hive.Key.String()).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return hives.ErrAlreadyExists
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hives (key, owner) VALUES ($1, $2)`, hive.Key.String(), hive.Owner.String())
	return err
}

// Drop removes a hive.
func (r *Repository) Drop(ctx context.Context, key registry.Address) error {
	if r == nil || r.db == nil {
		return errors.New("hive repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM hives WHERE key = $1`, key.String())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return hives.ErrNotFound
	}
	return nil
}

// ChangeOwner updates the owner wallet.
func (r *Repository) ChangeOwner(ctx context.Context, key, newOwner registry.Address) error {
	if r == nil || r.db == nil {
		return errors.New("hive repo: nil db")
	}
	if newOwner.IsZero() {
		return hives.ErrInvalidInput
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE hives SET owner = $2 WHERE key = $1`, key.String(), newOwner.String())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return hives.ErrNotFound
	}
	return nil
}

// List returns the enumerable hive keys.
func (r *Repository) List(ctx context.Context) ([]registry.Address, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hive repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM hives ORDER BY added_seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.Address
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, registry.Address(key))
	}
	return out, rows.Err()
}

// Info returns the (key, owner) pair for a hive.
func (r *Repository) Info(ctx context.Context, key registry.Address) (*hives.Hive, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hive repo: nil db")
	}
	var storedKey, owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT key, owner FROM hives WHERE key = $1`, key.String()).Scan(&storedKey, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hives.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hives.Hive{Key: registry.Address(storedKey), Owner: registry.Address(owner)}, nil
}

// IsHive reports key presence.
func (r *Repository) IsHive(ctx context.Context, key registry.Address) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("hive repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM hives WHERE key = $1)`, key.String()).Scan(&exists)
	return exists, err
}
