package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func notAPoint(t *testing.T) []byte {
	t.Helper()
	for i := 0; i < 256; i++ {
		b := make([]byte, 32)
		b[0] = byte(i)
		if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
			return b
		}
	}
	t.Fatalf("no invalid point encoding found")
	return nil
}

func TestParsePublicKey(t *testing.T) {
	kp, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	pk := kp.PublicKey()

	parsed, err := ParsePublicKey(pk[:])
	require.NoError(t, err)
	require.Equal(t, pk, parsed)

	_, err = ParsePublicKey(pk[:31])
	require.Error(t, err)

	_, err = ParsePublicKey(notAPoint(t))
	require.Error(t, err)
}

func TestParseSignature(t *testing.T) {
	kp, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	sig := kp.Sign([]byte("msg"))

	_, err = ParseSignature(sig[:])
	require.NoError(t, err)

	_, err = ParseSignature(sig[:63])
	require.Error(t, err)

	badS := bytes.Clone(sig[:])
	for i := 32; i < 64; i++ {
		badS[i] = 0xff
	}
	_, err = ParseSignature(badS)
	require.Error(t, err)

	badR := append(notAPoint(t), sig[32:]...)
	_, err = ParseSignature(badR)
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	kp, err := GenerateKeyPair(rand.Reader)
	require.NoError(t, err)

	digest := intent.Blake2b256([]byte("payload"))
	sig := kp.Sign(digest[:])
	require.True(t, Verify(kp.PublicKey(), digest[:], sig))

	other := intent.Blake2b256([]byte("payload!"))
	require.False(t, Verify(kp.PublicKey(), other[:], sig))

	// Interoperable with the standard library.
	pk := kp.PublicKey()
	require.True(t, ed25519.Verify(pk[:], digest[:], sig[:]))
}

func TestDeriveAddress(t *testing.T) {
	pk := bytes.Repeat([]byte{0x11}, 32)
	a1 := DeriveAddress(FlagEd25519, pk)
	a2 := DeriveAddress(FlagEd25519, pk)
	require.Equal(t, a1, a2)

	want := intent.Blake2b256(append([]byte{0x00}, pk...))
	require.Equal(t, "0x"+want.Hex(), a1.String())

	other := DeriveAddress(FlagEd25519, bytes.Repeat([]byte{0x12}, 32))
	require.NotEqual(t, a1, other)

	// The flag is part of the preimage.
	require.NotEqual(t, a1, DeriveAddress(SchemeFlag(1), pk))
}

func TestAddressText(t *testing.T) {
	a := DeriveAddress(FlagEd25519, bytes.Repeat([]byte{0x01}, 32))
	s := a.String()
	require.Len(t, s, 66)
	require.Equal(t, s, "0x"+hex.EncodeToString(a[:]))

	parsed, err := ParseAddress(s)
	require.NoError(t, err)
	require.Equal(t, a, parsed)

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("0xzz")
	require.Error(t, err)

	b, err := json.Marshal(struct {
		Addr Address `json:"addr"`
	}{Addr: a})
	require.NoError(t, err)
	require.Equal(t, `{"addr":"`+s+`"}`, string(b))

	var back struct {
		Addr Address `json:"addr"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, a, back.Addr)
}

func TestKeyPairFromMnemonic(t *testing.T) {
	k1, err := KeyPairFromMnemonic(testMnemonic)
	require.NoError(t, err)
	k2, err := KeyPairFromMnemonic("  " + testMnemonic + "\n")
	require.NoError(t, err)
	require.Equal(t, k1.PublicKey(), k2.PublicKey())
	require.Equal(t, k1.Address(), k2.Address())
	require.Equal(t, DeriveAddress(FlagEd25519, k1.pub[:]), k1.Address())

	_, err = KeyPairFromMnemonic("")
	require.Error(t, err)
	_, err = KeyPairFromMnemonic("not a mnemonic at all")
	require.Error(t, err)
}

// Vector from the Sui keytool: first ed25519 account at m/44'/784'/0'/0'/0'.
func TestKeyPairFromMnemonic_SuiVector(t *testing.T) {
	const (
		mnemonic = "film crazy soon outside stand loop subway crumble thrive popular green nuclear struggle pistol arm wife phrase warfare march wheat nephew ask sunny firm"
		address  = "0xa2d14fad60c56049ecf75246a481934691214ce413e6a8ae2fe6834c173a6133"
	)
	kp, err := KeyPairFromMnemonic(mnemonic)
	require.NoError(t, err)
	require.Equal(t, address, kp.Address().String())

	want, err := ParseAddress(address)
	require.NoError(t, err)
	require.Equal(t, want, DeriveAddress(FlagEd25519, kp.PublicKey().Bytes()))
}

func TestKeyPairStringHidesPrivateKey(t *testing.T) {
	kp, err := KeyPairFromMnemonic(testMnemonic)
	require.NoError(t, err)
	s := kp.String()
	require.NotContains(t, s, hex.EncodeToString(kp.priv.Seed()))
	require.Contains(t, s, kp.Address().String())
}

func TestKeyPairFromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	kp, err := KeyPairFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey), ed25519.PublicKey(kp.pub[:]))

	_, err = KeyPairFromSeed(seed[:31])
	require.Error(t, err)
}
