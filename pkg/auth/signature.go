package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
)

// CompactSignatureSize is flag(1) || signature(64) || public key(32).
const CompactSignatureSize = 1 + crypto.SignatureSize + crypto.PublicKeySize

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrUnsupportedScheme  = errors.New("unsupported signature scheme")
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrSignatureMismatch  = errors.New("signature verification failed")
)

// CompactSignature is the serialized wallet signature carried by requests.
type CompactSignature struct {
	Scheme    crypto.SchemeFlag
	Signature crypto.Signature
	PublicKey crypto.PublicKey
}

// DecodeCompactSignature decodes the Base64 transport form and checks only
// its shape: length, scheme flag and that the key and signature parse.
func DecodeCompactSignature(encoded string) (*CompactSignature, error) {
	// The decoder skips CR and LF; the transport form never contains them.
	if strings.ContainsAny(encoded, "\r\n") {
		return nil, fmt.Errorf("%w: line break in base64", ErrMalformedSignature)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrMalformedSignature)
	}
	if len(raw) != CompactSignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, CompactSignatureSize, len(raw))
	}

	scheme := crypto.SchemeFlag(raw[0])
	if scheme != crypto.FlagEd25519 {
		return nil, fmt.Errorf("%w: flag 0x%02x", ErrUnsupportedScheme, raw[0])
	}

	sigBytes := raw[1 : 1+crypto.SignatureSize]
	pubBytes := raw[1+crypto.SignatureSize:]

	pub, err := crypto.ParsePublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	sig, err := crypto.ParseSignature(sigBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return &CompactSignature{Scheme: scheme, Signature: sig, PublicKey: pub}, nil
}

// Bytes returns the 97-byte serialized form.
func (c *CompactSignature) Bytes() []byte {
	out := make([]byte, 0, CompactSignatureSize)
	out = append(out, byte(c.Scheme))
	out = append(out, c.Signature[:]...)
	out = append(out, c.PublicKey[:]...)
	return out
}

func (c *CompactSignature) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Bytes())
}

// Address is the account the signature's public key belongs to.
func (c *CompactSignature) Address() crypto.Address {
	return crypto.DeriveAddress(c.Scheme, c.PublicKey[:])
}
