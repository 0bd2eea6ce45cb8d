package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const hardened uint32 = 0x80000000

// SuiDerivationPath is m/44'/784'/0'/0'/0', the path Sui wallets use for
// their first Ed25519 account.
var SuiDerivationPath = []uint32{
	hardened + 44,
	hardened + 784,
	hardened + 0,
	hardened + 0,
	hardened + 0,
}

// KeyPair is the enclave's Ed25519 signing key. It is immutable once built.
type KeyPair struct {
	priv    ed25519.PrivateKey
	pub     PublicKey
	address Address
}

// GenerateKeyPair creates a fresh key pair from r.
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return newKeyPair(priv), nil
}

// KeyPairFromSeed builds a key pair from a 32-byte Ed25519 seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return newKeyPair(ed25519.NewKeyFromSeed(seed)), nil
}

// KeyPairFromMnemonic derives the key a Sui wallet would derive for the
// mnemonic's first account.
func KeyPairFromMnemonic(mnemonic string) (*KeyPair, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("mnemonic is not a valid BIP-39 mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	key := deriveSLIP10(seed, SuiDerivationPath)
	return KeyPairFromSeed(key)
}

func newKeyPair(priv ed25519.PrivateKey) *KeyPair {
	var pub PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &KeyPair{
		priv:    priv,
		pub:     pub,
		address: DeriveAddress(FlagEd25519, pub[:]),
	}
}

func (k *KeyPair) PublicKey() PublicKey {
	return k.pub
}

// Address is the account address of the enclave key.
func (k *KeyPair) Address() Address {
	return k.address
}

// Sign signs msg. For intent messages msg is the 32-byte digest.
func (k *KeyPair) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.priv, msg))
	return sig
}

// String never includes private key material.
func (k *KeyPair) String() string {
	return fmt.Sprintf("KeyPair{pub: %s, address: %s}", hex.EncodeToString(k.pub[:]), k.address)
}

// deriveSLIP10 walks an all-hardened SLIP-10 ed25519 path and returns the
// 32-byte private seed at its end.
func deriveSLIP10(seed []byte, path []uint32) []byte {
	h := hmac.New(sha512.New, []byte("ed25519 seed"))
	h.Write(seed)
	sum := h.Sum(nil)
	key, chain := sum[:32], sum[32:]

	for _, segment := range path {
		key, chain = slip10Child(key, chain, segment)
	}
	return key
}

func slip10Child(key, chain []byte, segment uint32) ([]byte, []byte) {
	buf := make([]byte, 0, 1+len(key)+4)
	buf = append(buf, 0)
	buf = append(buf, key...)
	buf = binary.BigEndian.AppendUint32(buf, segment)

	h := hmac.New(sha512.New, chain)
	h.Write(buf)
	sum := h.Sum(nil)
	return sum[:32], sum[32:]
}
