package memory

import (
	"context"
	"sync"

	"hivegrid/internal/registry"
	settlement "hivegrid/internal/settlement/domain"
)

// Journal is the in-memory settlement history in submission order.
type Journal struct {
	mu      sync.RWMutex
	entries []settlement.JournalEntry
}

// NewJournal constructs an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Append stores entries in order.
func (j *Journal) Append(ctx context.Context, entries []settlement.JournalEntry) error {
	_ = ctx
	j.mu.Lock()
	j.entries = append(j.entries, entries...)
	j.mu.Unlock()
	return nil
}

// Discard removes the entries of one (meter, slot) pair.
func (j *Journal) Discard(ctx context.Context, meter registry.Address, slot settlement.Slot) error {
	_ = ctx
	j.mu.Lock()
	defer j.mu.Unlock()
	kept := j.entries[:0]
	for _, entry := range j.entries {
		if entry.Meter == meter.String() && entry.Slot == slot {
			continue
		}
		kept = append(kept, entry)
	}
	j.entries = kept
	return nil
}

// List returns all entries in append order.
func (j *Journal) List(ctx context.Context) ([]settlement.JournalEntry, error) {
	_ = ctx
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]settlement.JournalEntry(nil), j.entries...), nil
}

// ListByMeter returns the entries of one meter in append order.
func (j *Journal) ListByMeter(ctx context.Context, meter registry.Address) ([]settlement.JournalEntry, error) {
	_ = ctx
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []settlement.JournalEntry
	for _, entry := range j.entries {
		if entry.Meter == meter.String() {
			out = append(out, entry)
		}
	}
	return out, nil
}

// ListBySlot returns the entries of one slot in append order.
func (j *Journal) ListBySlot(ctx context.Context, slot settlement.Slot) ([]settlement.JournalEntry, error) {
	_ = ctx
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []settlement.JournalEntry
	for _, entry := range j.entries {
		if entry.Slot == slot {
			out = append(out, entry)
		}
	}
	return out, nil
}
