// Package attest signs enclave responses so a remote verifier holding the
// enclave public key can trust both the payload and when it was produced.
package attest

import (
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
	"github.com/Layr-Labs/kissyface-enclave/pkg/types"
)

var (
	ErrClock             = errors.New("clock unavailable")
	ErrSignatureMismatch = errors.New("response signature verification failed")
)

// Clock reads wall-clock time.
type Clock func() (time.Time, error)

func SystemClock() (time.Time, error) {
	return time.Now(), nil
}

// timestamped is the value signed under an enclave intent. Timestamp comes
// first so every response shares the same prefix layout.
type timestamped[T any] struct {
	TimestampMs uint64
	Payload     T
}

// SigningDigest returns the 32-byte digest signed for a response:
//
//	BLAKE2b-256(scope || 0x00 || 0x03 || timestamp_ms (u64 LE) || BCS(payload))
func SigningDigest[T any](scope intent.Scope, timestampMs uint64, payload T) (intent.Digest, error) {
	return intent.Wrap(intent.Enclave(scope), timestamped[T]{TimestampMs: timestampMs, Payload: payload}).Digest()
}

// SignResponse signs payload at timestampMs under the enclave intent for scope.
// The only error is a payload type the canonical codec cannot encode.
func SignResponse[T any](kp *crypto.KeyPair, payload T, timestampMs uint64, scope intent.Scope) (*types.SignedResponse[T], error) {
	if kp == nil {
		return nil, fmt.Errorf("nil enclave key pair")
	}
	digest, err := SigningDigest(scope, timestampMs, payload)
	if err != nil {
		return nil, err
	}
	return &types.SignedResponse[T]{
		Payload:     payload,
		TimestampMs: timestampMs,
		Signature:   kp.Sign(digest[:]),
	}, nil
}

// SignResponseNow stamps payload with the current time read from clock.
// Clock failures are reported as ErrClock.
func SignResponseNow[T any](kp *crypto.KeyPair, clock Clock, payload T, scope intent.Scope) (*types.SignedResponse[T], error) {
	ts, err := NowMillis(clock)
	if err != nil {
		return nil, err
	}
	return SignResponse(kp, payload, ts, scope)
}

// NowMillis returns milliseconds since the Unix epoch.
func NowMillis(clock Clock) (uint64, error) {
	if clock == nil {
		clock = SystemClock
	}
	now, err := clock()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClock, err)
	}
	ms := now.UnixMilli()
	if ms < 0 {
		return 0, fmt.Errorf("%w: time %s is before the unix epoch", ErrClock, now.UTC().Format(time.RFC3339))
	}
	return uint64(ms), nil
}

// VerifyResponse reconstructs the signed digest for resp and checks it
// against the enclave public key.
func VerifyResponse[T any](pub crypto.PublicKey, scope intent.Scope, resp *types.SignedResponse[T]) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}
	digest, err := SigningDigest(scope, resp.TimestampMs, resp.Payload)
	if err != nil {
		return err
	}
	if !crypto.Verify(pub, digest[:], resp.Signature) {
		return fmt.Errorf("%w: digest %s", ErrSignatureMismatch, digest)
	}
	return nil
}
