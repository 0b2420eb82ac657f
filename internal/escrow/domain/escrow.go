package escrow

import "errors"

var (
	// ErrInvalidInput flags malformed addresses or zero-valued required
	// fields.
	ErrInvalidInput = errors.New("escrow: invalid input")
	// ErrHiveMismatch is returned when the hive named in a deposit does
	// not match the meter's registered hive.
	ErrHiveMismatch = errors.New("escrow: hive mismatch")
	// ErrInsufficientBalance is returned when an escrow debit exceeds the
	// account's internal balance.
	ErrInsufficientBalance = errors.New("escrow: insufficient balance")
)

// MeterBalance is a meter's internal escrow balance.
type MeterBalance struct {
	Meter   string
	Balance uint64
}

// HiveBalance is a hive owner's internal pool balance.
type HiveBalance struct {
	Hive    string
	Balance uint64
}
