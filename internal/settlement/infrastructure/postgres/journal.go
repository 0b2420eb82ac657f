package postgres

import (
	"context"
	"database/sql"
	"errors"

	"hivegrid/internal/registry"
	settlement "hivegrid/internal/settlement/domain"
)

// Journal persists the settlement history in postgres.
type Journal struct {
	db *sql.DB
}

// NewJournal constructs a journal.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Append stores entries in one transaction.
func (j *Journal) Append(ctx context.Context, entries []settlement.JournalEntry) error {
	if j == nil || j.db == nil {
		return errors.New("settlement journal: nil db")
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO settlement_journal (meter, hive, slot, net_amount, settled_at)
VALUES ($1, $2, $3, $4, $5)`,
			entry.Meter, entry.Hive, int(entry.Slot), entry.Net, entry.SettledAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Discard removes the entries of one (meter, slot) pair.
func (j *Journal) Discard(ctx context.Context, meter registry.Address, slot settlement.Slot) error {
	if j == nil || j.db == nil {
		return errors.New("settlement journal: nil db")
	}
	_, err := j.db.ExecContext(ctx,
		`DELETE FROM settlement_journal WHERE meter = $1 AND slot = $2`,
		meter.String(), int(slot))
	return err
}

// List returns all entries in append order.
func (j *Journal) List(ctx context.Context) ([]settlement.JournalEntry, error) {
	return j.query(ctx, `
SELECT meter, hive, slot, net_amount, settled_at
FROM settlement_journal ORDER BY entry_seq ASC`)
}

// ListByMeter returns the entries of one meter in append order.
func (j *Journal) ListByMeter(ctx context.Context, meter registry.Address) ([]settlement.JournalEntry, error) {
	return j.query(ctx, `
SELECT meter, hive, slot, net_amount, settled_at
FROM settlement_journal WHERE meter = $1 ORDER BY entry_seq ASC`, meter.String())
}

// ListBySlot returns the entries of one slot in append order.
func (j *Journal) ListBySlot(ctx context.Context, slot settlement.Slot) ([]settlement.JournalEntry, error) {
	return j.query(ctx, `
SELECT meter, hive, slot, net_amount, settled_at
FROM settlement_journal WHERE slot = $1 ORDER BY entry_seq ASC`, int(slot))
}

func (j *Journal) query(ctx context.Context, statement string, args ...any) ([]settlement.JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, errors.New("settlement journal: nil db")
	}
	rows, err := j.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settlement.JournalEntry
	for rows.Next() {
		var (
			entry settlement.JournalEntry
			slot  int
		)
		if err := rows.Scan(&entry.Meter, &entry.Hive, &slot, &entry.Net, &entry.SettledAt); err != nil {
			return nil, err
		}
		entry.Slot = settlement.Slot(slot)
		out = append(out, entry)
	}
	return out, rows.Err()
}
