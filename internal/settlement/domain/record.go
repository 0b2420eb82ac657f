package settlement

import (
	"context"
	"time"

	"hivegrid/internal/registry"
)

// Record marks a (meter, slot) pair as settled. Its existence is the
// idempotency fence: a second submission for the same pair is rejected.
type Record struct {
	Meter     registry.Address
	Slot      Slot
	SettledAt time.Time
}

// RecordRepository persists settlement records. MarkSettled is atomic over
// the batch: if any pair is already settled none of the batch is recorded.
// Unmark is the compensation path for a submission that failed after the
// mark; it reopens the pair so a retry can settle it.
type RecordRepository interface {
	IsSettled(ctx context.Context, meter registry.Address, slot Slot) (bool, error)
	MarkSettled(ctx context.Context, records []Record) error
	Unmark(ctx context.Context, meter registry.Address, slot Slot) error
}

// JournalEntry is one settled position: what a meter owed (positive) or was
// owed (negative) for a slot, after netting all its flows.
type JournalEntry struct {
	Meter     string
	Hive      string
	Slot      Slot
	Net       int64
	SettledAt time.Time
}

// Journal is the settlement history backing reports and exports. Entries
// only leave through Discard, the compensation path for a submission that
// failed after journaling.
type Journal interface {
	Append(ctx context.Context, entries []JournalEntry) error
	Discard(ctx context.Context, meter registry.Address, slot Slot) error
	List(ctx context.Context) ([]JournalEntry, error)
	ListByMeter(ctx context.Context, meter registry.Address) ([]JournalEntry, error)
	ListBySlot(ctx context.Context, slot Slot) ([]JournalEntry, error)
}
