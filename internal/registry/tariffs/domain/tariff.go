package tariffs

import "errors"

var (
	// ErrInvalidInput is returned for malformed or mismatched batch shapes.
	ErrInvalidInput = errors.New("tariffs: invalid input")
	// ErrAlreadyExists is returned when a tariff name is already present.
	ErrAlreadyExists = errors.New("tariffs: already exists")
	// ErrNotFound is returned when a tariff name is absent.
	ErrNotFound = errors.New("tariffs: not found")
)

// Direction tags a tariff as charging or paying the end-user.
type Direction int

const (
	// DirectionBuy charges the end-user per unit of flow.
	DirectionBuy Direction = iota
	// DirectionSell pays the end-user per unit of flow.
	DirectionSell
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Sign returns +1 for buy tariffs and -1 for sell tariffs, the factor
// applied to flow*price when netting a settlement.
func (d Direction) Sign() int64 {
	if d == DirectionSell {
		return -1
	}
	return 1
}

// Tariff is a named price rule. Price is in the smallest settlement-token
// denomination per unit of energy flow.
type Tariff struct {
	Name      string
	Direction Direction
	Price     uint64
}

// Validate checks tariff invariants.
func (t Tariff) Validate() error {
	if t.Name == "" {
		return ErrInvalidInput
	}
	if !t.Direction.Valid() {
		return ErrInvalidInput
	}
	return nil
}
