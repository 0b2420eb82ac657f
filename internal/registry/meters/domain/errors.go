package meters

import "errors"

var (
	// ErrInvalidInput is returned for malformed or mismatched batch shapes.
	ErrInvalidInput = errors.New("meters: invalid input")
	// ErrAlreadyRegistered is returned when a key is already present.
	ErrAlreadyRegistered = errors.New("meters: already registered")
	// ErrNotRegistered is returned when a key is absent.
	ErrNotRegistered = errors.New("meters: not registered")
)
