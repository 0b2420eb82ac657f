package postgres

import (
	"context"
	"database/sql"
	"errors"

	"hivegrid/internal/registry"
	meters "hivegrid/internal/registry/meters/domain"
)

// Repository persists meter records in postgres. Batch mutations run in a
// single transaction so a precondition failure on any element applies none
// of the batch.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RegisterBatch inserts all records or none.
func (r *Repository) RegisterBatch(ctx context.Context, batch []meters.Meter) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[registry.Address]bool, len(batch))
	for _, m := range batch {
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m.Key] {
			return meters.ErrAlreadyRegistered
		}
		seen[m.Key] = true
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM meters WHERE key = $1)`, m.Key.String()).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return meters.ErrAlreadyRegistered
		}
	}
	for _, m := range batch {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO meters (key, hive, end_user, rating, meter_type, description)
VALUES ($1, $2, $3, $4, $5, $6)`,
			m.Key.String(), m.Hive.String(), m.User.String(), int64(m.Rating), int(m.Type), m.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateBatch overwrites all fields of all records or none.
func (r *Repository) UpdateBatch(ctx context.Context, batch []meters.Meter) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range batch {
		if err := m.Validate(); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
UPDATE meters SET hive = $2, end_user = $3, rating = $4, meter_type = $5, description = $6
WHERE key = $1`,
			m.Key.String(), m.Hive.String(), m.User.String(), int64(m.Rating), int(m.Type), m.Description)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return meters.ErrNotRegistered
		}
	}
	return tx.Commit()
}

// RemoveBatch deletes all records or none.
func (r *Repository) RemoveBatch(ctx context.Context, keys []registry.Address) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range keys {
		result, err := tx.ExecContext(ctx, `DELETE FROM meters WHERE key = $1`, key.String())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return meters.ErrNotRegistered
		}
	}
	return tx.Commit()
}

// AssignHive sets the hive link on all keys or none.
func (r *Repository) AssignHive(ctx context.Context, keys []registry.Address, hive registry.Address) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range keys {
		result, err := tx.ExecContext(ctx, `UPDATE meters SET hive = $2 WHERE key = $1`, key.String(), hive.String())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return meters.ErrNotRegistered
		}
	}
	return tx.Commit()
}

// SetEndUsers sets the end-user wallet on all keys or none.
func (r *Repository) SetEndUsers(ctx context.Context, keys []registry.Address, users []registry.Address) error {
	if r == nil || r.db == nil {
		return errors.New("meter repo: nil db")
	}
	if len(keys) != len(users) {
		return meters.ErrInvalidInput
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, key := range keys {
		result, err := tx.ExecContext(ctx, `UPDATE meters SET end_user = $2 WHERE key = $1`, key.String(), users[i].String())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return meters.ErrNotRegistered
		}
	}
	return tx.Commit()
}

// IsRegistered reports key presence.
func (r *Repository) IsRegistered(ctx context.Context, key registry.Address) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("meter repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM meters WHERE key = $1)`, key.String()).Scan(&exists)
	return exists, err
}

// Get loads one record.
func (r *Repository) Get(ctx context.Context, key registry.Address) (*meters.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT key, hive, end_user, rating, meter_type, description
FROM meters WHERE key = $1`, key.String())
	return scanMeter(row)
}

// List returns all records in registration order.
func (r *Repository) List(ctx context.Context) ([]meters.Meter, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("meter repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT key, hive, end_user, rating, meter_type, description
FROM meters ORDER BY registered_seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []meters.Meter
	for rows.Next() {
		m, err := scanMeter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeter(row rowScanner) (*meters.Meter, error) {
	var (
		key, hive, user, description string
		rating                       int64
		meterType                    int
	)
	if err := row.Scan(&key, &hive, &user, &rating, &meterType, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, meters.ErrNotRegistered
		}
		return nil, err
	}
	return &meters.Meter{
		Key:         registry.Address(key),
		Hive:        registry.Address(hive),
		User:        registry.Address(user),
		Rating:      uint64(rating),
		Type:        meters.MeterType(meterType),
		Description: description,
	}, nil
}
