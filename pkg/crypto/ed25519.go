package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"
)

// SchemeFlag is the signature scheme byte that prefixes serialized
// signatures and public keys before address hashing.
type SchemeFlag uint8

const FlagEd25519 SchemeFlag = 0x00

const (
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

type PublicKey [PublicKeySize]byte

type Signature [SignatureSize]byte

// ParsePublicKey checks that b is the encoding of a point on the curve.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("ed25519 public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
		return pk, fmt.Errorf("ed25519 public key is not a curve point")
	}
	copy(pk[:], b)
	return pk, nil
}

// ParseSignature checks that b is R || S with R a curve point and S a
// canonical scalar.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, fmt.Errorf("ed25519 signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	if _, err := new(edwards25519.Point).SetBytes(b[:32]); err != nil {
		return sig, fmt.Errorf("ed25519 signature R is not a curve point")
	}
	if _, err := edwards25519.NewScalar().SetCanonicalBytes(b[32:]); err != nil {
		return sig, fmt.Errorf("ed25519 signature S is not a canonical scalar")
	}
	copy(sig[:], b)
	return sig, nil
}

// Verify reports whether sig is a valid signature of msg by pub.
func Verify(pub PublicKey, msg []byte, sig Signature) bool {
	return ed25519.Verify(pub[:], msg, sig[:])
}

// Bytes returns the raw 32-byte key.
func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("public key hex: %w", err)
	}
	parsed, err := ParsePublicKey(b)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// MarshalText renders the signature as lowercase hex, the form carried in
// signed responses.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s[:])), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("signature hex: %w", err)
	}
	if len(b) != SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	copy(s[:], b)
	return nil
}
