package memory

import (
	"context"
	"sync"

	"hivegrid/internal/registry"
	settlement "hivegrid/internal/settlement/domain"
)

type recordKey struct {
	meter registry.Address
	slot  settlement.Slot
}

// RecordRepository is the in-memory settlement record store.
type RecordRepository struct {
	mu      sync.RWMutex
	settled map[recordKey]settlement.Record
}

// NewRecordRepository constructs an empty store.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{settled: make(map[recordKey]settlement.Record)}
}

// IsSettled reports whether the (meter, slot) pair has been settled.
func (r *RecordRepository) IsSettled(ctx context.Context, meter registry.Address, slot settlement.Slot) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.settled[recordKey{meter, slot}]
	return ok, nil
}

// MarkSettled records all pairs or none.
func (r *RecordRepository) MarkSettled(ctx context.Context, records []settlement.Record) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		if _, ok := r.settled[recordKey{record.Meter, record.Slot}]; ok {
			return settlement.ErrAlreadySettled
		}
	}
	for _, record := range records {
		r.settled[recordKey{record.Meter, record.Slot}] = record
	}
	return nil
}

// Unmark reopens a (meter, slot) pair. Absence is not an error.
func (r *RecordRepository) Unmark(ctx context.Context, meter registry.Address, slot settlement.Slot) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settled, recordKey{meter, slot})
	return nil
}
