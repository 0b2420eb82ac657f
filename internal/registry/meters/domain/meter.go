package meters

import "hivegrid/internal/registry"

// MeterType classifies a metering endpoint.
type MeterType int

const (
	MeterTypeConsumer MeterType = iota
	MeterTypeProducer
	MeterTypeProsumer
)

// Valid reports whether the meter type is a known class.
func (t MeterType) Valid() bool {
	return t >= MeterTypeConsumer && t <= MeterTypeProsumer
}

// Meter is one metered producer/consumer of energy.
//
// Hive and User are foreign-key style references: a zero Hive means
// "unassigned", and the referenced hive is not required to exist in the
// hive registry at this layer. Linkage is enforced at the escrow and
// settlement boundaries.
type Meter struct {
	Key         registry.Address
	Hive        registry.Address
	User        registry.Address
	Rating      uint64
	Type        MeterType
	Description string
}

// Validate checks meter invariants.
func (m Meter) Validate() error {
	if m.Key.IsZero() {
		return ErrInvalidInput
	}
	if !m.Type.Valid() {
		return ErrInvalidInput
	}
	return nil
}
