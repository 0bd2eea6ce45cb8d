// Package intent implements Sui-style intent messages: a value prefixed with
// a (scope, version, app id) tag before it is hashed and signed.
package intent

import (
	"fmt"

	"github.com/Layr-Labs/kissyface-enclave/pkg/bcs"
)

// Scope identifies the class of message being signed.
type Scope uint8

const (
	// ScopeProcessData tags responses produced by the enclave's data handlers.
	ScopeProcessData Scope = 0
	// ScopeKeyInfo tags the enclave's self-signed public key document.
	ScopeKeyInfo Scope = 1
	// ScopePersonalMessage is the Sui wallet personal message scope used by
	// inbound request signatures.
	ScopePersonalMessage Scope = 3
)

func (s Scope) String() string {
	switch s {
	case ScopeProcessData:
		return "process_data"
	case ScopeKeyInfo:
		return "key_info"
	case ScopePersonalMessage:
		return "personal_message"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

type Version uint8

const V0 Version = 0

// AppID namespaces the signing domain.
type AppID uint8

const (
	// AppIDSui is the domain of user wallet signatures.
	AppIDSui AppID = 0
	// AppIDEnclave is the domain of enclave response signatures. It is
	// distinct from every Sui app id so an enclave signature can never be
	// presented as a wallet signature.
	AppIDEnclave AppID = 3
)

// Intent is the 3-byte tag prepended to every signed value.
type Intent struct {
	Scope   Scope
	Version Version
	AppID   AppID
}

// PersonalMessage is the intent inbound requests are verified under.
func PersonalMessage() Intent {
	return Intent{Scope: ScopePersonalMessage, Version: V0, AppID: AppIDSui}
}

// Enclave is the intent enclave responses are signed under.
func Enclave(scope Scope) Intent {
	return Intent{Scope: scope, Version: V0, AppID: AppIDEnclave}
}

// Bytes returns the 3-byte encoding of the intent.
func (i Intent) Bytes() [3]byte {
	return [3]byte{byte(i.Scope), byte(i.Version), byte(i.AppID)}
}

// Message wraps a value with its intent. Its canonical encoding is the intent
// bytes followed by the encoding of Value.
type Message[T any] struct {
	Intent Intent
	Value  T
}

func Wrap[T any](i Intent, value T) Message[T] {
	return Message[T]{Intent: i, Value: value}
}

// Bytes returns the canonical encoding of the message.
func (m Message[T]) Bytes() ([]byte, error) {
	b, err := bcs.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s intent message: %w", m.Intent.Scope, err)
	}
	return b, nil
}

// Digest returns the BLAKE2b-256 digest of the canonical encoding. This is
// the 32-byte value that gets signed.
func (m Message[T]) Digest() (Digest, error) {
	b, err := m.Bytes()
	if err != nil {
		return Digest{}, err
	}
	return Blake2b256(b), nil
}
