package registry

import (
	"errors"
	"strings"
)

// Address is an opaque fixed-length key identifying meters, hives and
// wallets: 20 bytes, hex encoded with a 0x prefix, stored lowercase.
type Address string

// ZeroAddress is the canonical "unset" value. An unassigned hive link is
// legitimately represented as the zero address, not as an error.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ErrInvalidAddress is returned when a string is not a valid address.
var ErrInvalidAddress = errors.New("registry: invalid address")

// ParseAddress validates and normalizes an address string.
func ParseAddress(value string) (Address, error) {
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return "", ErrInvalidAddress
	}
	hex := value[2:]
	if len(hex) != 40 {
		return "", ErrInvalidAddress
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return "", ErrInvalidAddress
		}
	}
	return Address("0x" + strings.ToLower(hex)), nil
}

// MustAddress parses an address and panics on failure. For tests and seeds.
func MustAddress(value string) Address {
	addr, err := ParseAddress(value)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" || a == ZeroAddress }

// String returns the canonical form.
func (a Address) String() string { return string(a) }
