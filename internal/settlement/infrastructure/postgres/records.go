package postgres

import (
	"context"
	"database/sql"
	"errors"

	"hivegrid/internal/registry"
	settlement "hivegrid/internal/settlement/domain"
)

// RecordRepository persists settlement records in postgres. The unique
// (meter, slot) constraint on the table is the second idempotency fence
// behind the engine's own check.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository constructs a repository.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// IsSettled reports whether the (meter, slot) pair has been settled.
func (r *RecordRepository) IsSettled(ctx context.Context, meter registry.Address, slot settlement.Slot) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("settlement repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM settlement_records WHERE meter = $1 AND slot = $2)`,
		meter.String(), int(slot)).Scan(&exists)
	return exists, err
}

// MarkSettled records all pairs in one transaction. A conflicting pair rolls
// the whole batch back with ErrAlreadySettled.
func (r *RecordRepository) MarkSettled(ctx context.Context, records []settlement.Record) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, record := range records {
		result, err := tx.ExecContext(ctx, `
INSERT INTO settlement_records (meter, slot, settled_at)
VALUES ($1, $2, $3)
ON CONFLICT (meter, slot) DO NOTHING`,
			record.Meter.String(), int(record.Slot), record.SettledAt)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return settlement.ErrAlreadySettled
		}
	}
	return tx.Commit()
}

// Unmark reopens a (meter, slot) pair. Absence is not an error.
func (r *RecordRepository) Unmark(ctx context.Context, meter registry.Address, slot settlement.Slot) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM settlement_records WHERE meter = $1 AND slot = $2`,
		meter.String(), int(slot))
	return err
}
