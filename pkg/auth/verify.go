// Package auth authenticates inbound requests signed by a Sui wallet over the
// personal message for the request date.
package auth

import (
	"fmt"

	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
)

// VerifyRequest checks that signature is a wallet signature over the personal
// message for date and returns the signer's address.
//
// The date is bound into the signed bytes but is not checked for freshness.
func VerifyRequest(signature, date string) (crypto.Address, error) {
	cs, err := DecodeCompactSignature(signature)
	if err != nil {
		return crypto.Address{}, err
	}

	digest, err := intent.PersonalMessageDigest(date)
	if err != nil {
		return crypto.Address{}, err
	}

	if !crypto.Verify(cs.PublicKey, digest[:], cs.Signature) {
		return crypto.Address{}, fmt.Errorf("%w: digest %s", ErrSignatureMismatch, digest)
	}
	return cs.Address(), nil
}

// SignRequest produces the Base64 compact signature a wallet holding kp would
// send for date. It is the client half of VerifyRequest.
func SignRequest(kp *crypto.KeyPair, date string) (string, error) {
	digest, err := intent.PersonalMessageDigest(date)
	if err != nil {
		return "", err
	}
	cs := CompactSignature{
		Scheme:    crypto.FlagEd25519,
		Signature: kp.Sign(digest[:]),
		PublicKey: kp.PublicKey(),
	}
	return cs.Base64(), nil
}
