package hives

import (
	"errors"

	"hivegrid/internal/registry"
)

var (
	// ErrAlreadyExists is returned when a hive key is already present.
	ErrAlreadyExists = errors.New("hives: already exists")
	// ErrNotFound is returned when a hive key is absent.
	ErrNotFound = errors.New("hives: not found")
	// ErrInvalidInput is returned for malformed keys.
	ErrInvalidInput = errors.New("hives: invalid input")
)

// Hive is an aggregation operator that settles with its assigned meters.
// The key is stored redundantly inside the record for enumeration.
type Hive struct {
	Key   registry.Address
	Owner registry.Address
}

// Validate checks hive invariants.
func (h Hive) Validate() error {
	if h.Key.IsZero() {
		return ErrInvalidInput
	}
	if h.Owner.IsZero() {
		return ErrInvalidInput
	}
	return nil
}
