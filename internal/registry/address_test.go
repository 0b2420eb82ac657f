package registry

import (
	"errors"
	"testing"
)

func TestParseAddress_Normalizes(t *testing.T) {
	addr, err := ParseAddress("0xABCdef0000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr != Address("0xabcdef0000000000000000000000000000000001") {
		t.Fatalf("unexpected normalization: %s", addr)
	}
}

func TestParseAddress_Rejects(t *testing.T) {
	cases := []string{
		"",
		"abcdef0000000000000000000000000000000001",
		"0x123",
		"0xzzcdef0000000000000000000000000000000001",
		"0xabcdef00000000000000000000000000000000012",
	}
	for _, value := range cases {
		if _, err := ParseAddress(value); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected ErrInvalidAddress for %q, got %v", value, err)
		}
	}
}

func TestAddressIsZero(t *testing.T) {
	if !ZeroAddress.IsZero() {
		t.Fatal("zero address should be zero")
	}
	if !Address("").IsZero() {
		t.Fatal("empty address should be zero")
	}
	if MustAddress("0x0000000000000000000000000000000000000001").IsZero() {
		t.Fatal("non-zero address reported zero")
	}
}
