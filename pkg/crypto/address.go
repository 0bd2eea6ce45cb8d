package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
)

const AddressLength = intent.DigestLength

// Address is an account identifier: BLAKE2b-256(flag || public key).
type Address [AddressLength]byte

// DeriveAddress hashes the scheme flag and raw public key into an address.
func DeriveAddress(flag SchemeFlag, pub []byte) Address {
	return Address(intent.Blake2b256([]byte{byte(flag)}, pub))
}

// String returns the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, fmt.Errorf("address hex: %w", err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
