package attest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
	"github.com/Layr-Labs/kissyface-enclave/pkg/types"
)

var ErrKeyInfoExpired = errors.New("key info expired")

// NewKeyInfo issues a key info document valid for ttl from issuedAt, signed
// by the key it describes.
func NewKeyInfo(kp *crypto.KeyPair, issuedAt time.Time, ttl time.Duration) (*types.SignedResponse[types.KeyInfo], error) {
	if kp == nil {
		return nil, fmt.Errorf("missing enclave keys")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("key info ttl must be positive, got %s", ttl)
	}
	iat, err := NowMillis(func() (time.Time, error) { return issuedAt, nil })
	if err != nil {
		return nil, err
	}
	info := types.KeyInfo{
		PublicKey:   kp.PublicKey(),
		Address:     kp.Address(),
		IssuedAtMs:  iat,
		ExpiresAtMs: iat + uint64(ttl.Milliseconds()),
	}
	return SignResponse(kp, info, iat, intent.ScopeKeyInfo)
}

// VerifyKeyInfo checks the self-signature, the address binding and expiry.
func VerifyKeyInfo(doc *types.SignedResponse[types.KeyInfo], now time.Time) error {
	if doc == nil {
		return fmt.Errorf("nil key info")
	}
	info := doc.Payload
	if want := crypto.DeriveAddress(crypto.FlagEd25519, info.PublicKey[:]); want != info.Address {
		return fmt.Errorf("key info address %s does not match public key", info.Address)
	}
	if doc.TimestampMs != info.IssuedAtMs {
		return fmt.Errorf("key info timestamp %d does not match issued_at_ms %d", doc.TimestampMs, info.IssuedAtMs)
	}
	if err := VerifyResponse(info.PublicKey, intent.ScopeKeyInfo, doc); err != nil {
		return err
	}
	if now.UnixMilli() >= int64(info.ExpiresAtMs) {
		return fmt.Errorf("%w at %d", ErrKeyInfoExpired, info.ExpiresAtMs)
	}
	return nil
}

// KeyInfoCache hands out a stable key info document and re-issues it only
// once it has expired.
type KeyInfoCache struct {
	keys *crypto.KeyPair
	ttl  time.Duration

	mu        sync.Mutex
	doc       *types.SignedResponse[types.KeyInfo]
	expiresAt time.Time
}

func NewKeyInfoCache(keys *crypto.KeyPair, ttl time.Duration) *KeyInfoCache {
	return &KeyInfoCache{keys: keys, ttl: ttl}
}

func (c *KeyInfoCache) Get(now time.Time) (*types.SignedResponse[types.KeyInfo], error) {
	if c == nil || c.keys == nil {
		return nil, fmt.Errorf("nil key info cache")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc != nil && now.Before(c.expiresAt) {
		return c.doc, nil
	}

	doc, err := NewKeyInfo(c.keys, now, c.ttl)
	if err != nil {
		return nil, err
	}
	c.doc = doc
	c.expiresAt = time.UnixMilli(int64(doc.Payload.ExpiresAtMs))
	return doc, nil
}
