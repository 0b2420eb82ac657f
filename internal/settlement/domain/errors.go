package settlement

import "errors"

var (
	// ErrInvalidInput flags malformed or length-mismatched submission
	// arrays.
	ErrInvalidInput = errors.New("settlement: invalid input")
	// ErrInvalidSlot is returned when the submitted slot is not yet
	// closed, i.e. later than the last completed billing period.
	ErrInvalidSlot = errors.New("settlement: slot not yet closed")
	// ErrAlreadySettled is returned when a (meter, slot) pair has been
	// settled before. The idempotency fence for duplicate submissions.
	ErrAlreadySettled = errors.New("settlement: already settled")
	// ErrUnknownTariff is returned when a flow references a tariff name
	// absent from the tariff registry.
	ErrUnknownTariff = errors.New("settlement: unknown tariff")
	// ErrDanglingHive is returned when a meter has no hive assigned or
	// its hive link points at a hive that is no longer registered.
	ErrDanglingHive = errors.New("settlement: meter hive not registered")
	// ErrDanglingUser is returned when a net payout has no end-user
	// wallet to receive it.
	ErrDanglingUser = errors.New("settlement: meter has no end user")
	// ErrAmountOverflow is returned when a flow amount or the running net
	// leaves the representable range.
	ErrAmountOverflow = errors.New("settlement: amount overflow")
)
