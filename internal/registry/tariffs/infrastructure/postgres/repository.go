package postgres

import (
	"context"
	"database/sql"
	"errors"

	tariffs "hivegrid/internal/registry/tariffs/domain"
)

// Repository persists tariffs in postgres. Batch mutations run in a single
// transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AddBatch inserts all tariffs or none.
func (r *Repository) AddBatch(ctx context.Context, batch []tariffs.Tariff) error {
	if r == nil || r.db == nil {
		return errors.New("tariff repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]bool, len(batch))
	for _, t := range batch {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return tariffs.ErrAlreadyExists
		}
		seen[t.Name] = true
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tariffs WHERE name = $1)`, t.Name).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return tariffs.ErrAlreadyExists
		}
	}
	for _, t := range batch {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tariffs (name, direction, price) VALUES ($1, $2, $3)`,
			t.Name, int(t.Direction), int64(t.Price)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateBatch overwrites all tariffs or none.
func (r *Repository) UpdateBatch(ctx context.Context, batch []tariffs.Tariff) error {
	if r == nil || r.db == nil {
		return errors.New("tariff repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range batch {
		if err := t.Validate(); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE tariffs SET direction = $2, price = $3 WHERE name = $1`,
			t.Name, int(t.Direction), int64(t.Price))
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return tariffs.ErrNotFound
		}
	}
	return tx.Commit()
}

// RemoveBatch deletes all tariffs or none.
func (r *Repository) RemoveBatch(ctx context.Context, names []string) error {
	if r == nil || r.db == nil {
		return errors.New("tariff repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range names {
		result, err := tx.ExecContext(ctx, `DELETE FROM tariffs WHERE name = $1`, name)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return tariffs.ErrNotFound
		}
	}
	return tx.Commit()
}

// Get returns the tariff for name.
func (r *Repository) Get(ctx context.Context, name string) (*tariffs.Tariff, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	var (
		direction int
		price     int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT direction, price FROM tariffs WHERE name = $1`, name).Scan(&direction, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tariffs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tariffs.Tariff{Name: name, Direction: tariffs.Direction(direction), Price: uint64(price)}, nil
}

// IsRegistered reports name presence.
func (r *Repository) IsRegistered(ctx context.Context, name string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("tariff repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tariffs WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// List returns all tariffs in insertion order.
func (r *Repository) List(ctx context.Context) ([]tariffs.Tariff, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT name, direction, price FROM tariffs ORDER BY added_seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tariffs.Tariff
	for rows.Next() {
		var (
			name      string
			direction int
			price     int64
		)
		if err := rows.Scan(&name, &direction, &price); err != nil {
			return nil, err
		}
		out = append(out, tariffs.Tariff{Name: name, Direction: tariffs.Direction(direction), Price: uint64(price)})
	}
	return out, rows.Err()
}
