package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/kissyface-enclave/pkg/bcs"
	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
)

func newKey(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair(rand.Reader)
	require.NoError(t, err)
	return kp
}

func TestVerifyRequest_RoundTrip(t *testing.T) {
	dates := []string{"", "2024-01-01", "2025-12-31T23:59:59Z", "any opaque string ✓"}
	for i := 0; i < 8; i++ {
		kp := newKey(t)
		for _, date := range dates {
			sig, err := SignRequest(kp, date)
			require.NoError(t, err)

			addr, err := VerifyRequest(sig, date)
			require.NoError(t, err, "date %q", date)
			require.Equal(t, kp.Address(), addr)
		}
	}
}

// Builds the blob by hand the way a wallet does, without going through
// SignRequest, and checks the address formula.
func TestVerifyRequest_WalletScenario(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	message := []byte("I support AI model creators! 2024-01-01")
	encoded, err := bcs.Marshal(struct {
		Scope, Version, AppID uint8
		Value                 []byte
	}{Scope: 3, Version: 0, AppID: 0, Value: message})
	require.NoError(t, err)
	digest := intent.Blake2b256(encoded)

	blob := []byte{0x00}
	blob = append(blob, ed25519.Sign(priv, digest[:])...)
	blob = append(blob, pub...)
	require.Len(t, blob, 97)

	addr, err := VerifyRequest(base64.StdEncoding.EncodeToString(blob), "2024-01-01")
	require.NoError(t, err)

	want := intent.Blake2b256(append([]byte{0x00}, pub...))
	require.Equal(t, "0x"+want.Hex(), addr.String())
}

func TestVerifyRequest_WrongDate(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "2024-01-01")
	require.NoError(t, err)

	_, err = VerifyRequest(sig, "2024-01-02")
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyRequest_BitFlipsNeverVerify(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "2024-01-01")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)

	for i := 0; i < len(raw)*8; i++ {
		flipped := append([]byte(nil), raw...)
		flipped[i/8] ^= 1 << (i % 8)

		_, err := VerifyRequest(base64.StdEncoding.EncodeToString(flipped), "2024-01-01")
		require.Error(t, err, "bit %d", i)
		ok := errors.Is(err, ErrUnsupportedScheme) ||
			errors.Is(err, ErrInvalidKeyMaterial) ||
			errors.Is(err, ErrSignatureMismatch)
		require.True(t, ok, "bit %d: unexpected error %v", i, err)
		if i < 8 {
			require.ErrorIs(t, err, ErrUnsupportedScheme)
		}
	}
}

func TestVerifyRequest_Malformed(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "d")
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(sig)

	for _, n := range []int{0, 1, 64, 96, 98, 128} {
		b := make([]byte, n)
		copy(b, raw)
		_, err := VerifyRequest(base64.StdEncoding.EncodeToString(b), "d")
		require.ErrorIs(t, err, ErrMalformedSignature, "length %d", n)
	}

	_, err = VerifyRequest("not base64!!", "d")
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestVerifyRequest_RejectsLineBreaks(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "2024-01-01")
	require.NoError(t, err)

	for _, bad := range []string{
		sig[:10] + "\r\n" + sig[10:] + "\n",
		sig + "\n",
		"\r" + sig,
		sig[:40] + "\n" + sig[40:],
	} {
		_, err := VerifyRequest(bad, "2024-01-01")
		require.ErrorIs(t, err, ErrMalformedSignature, "%q", bad)
	}

	addr, err := VerifyRequest(sig, "2024-01-01")
	require.NoError(t, err)
	require.Equal(t, kp.Address(), addr)
}

func TestVerifyRequest_Idempotent(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "2024-01-01")
	require.NoError(t, err)

	a1, err1 := VerifyRequest(sig, "2024-01-01")
	a2, err2 := VerifyRequest(sig, "2024-01-01")
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, a1, a2)

	_, err1 = VerifyRequest(sig, "other")
	_, err2 = VerifyRequest(sig, "other")
	require.Equal(t, err1.Error(), err2.Error())
}

func TestVerifyRequest_ErrorsDoNotEchoSignature(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "2024-01-01")
	require.NoError(t, err)

	_, err = VerifyRequest(sig, "2024-01-02")
	require.Error(t, err)
	require.NotContains(t, err.Error(), sig)
	require.NotContains(t, err.Error(), sig[4:40])
}

func TestCompactSignature_Bytes(t *testing.T) {
	kp := newKey(t)
	sig, err := SignRequest(kp, "x")
	require.NoError(t, err)

	cs, err := DecodeCompactSignature(sig)
	require.NoError(t, err)
	require.Equal(t, sig, cs.Base64())
	require.Len(t, cs.Bytes(), CompactSignatureSize)
	require.Equal(t, kp.Address(), cs.Address())
}

func TestDateWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := DateWindow{MaxSkew: time.Hour, Now: func() time.Time { return now }}

	require.NoError(t, w.Check("2024-01-01"))
	require.NoError(t, w.Check("2024-01-01T11:30:00Z"))
	require.NoError(t, w.Check("2024-01-01T12:59:00Z"))

	require.ErrorIs(t, w.Check("2023-12-31"), ErrStaleDate)
	require.ErrorIs(t, w.Check("2024-01-02"), ErrStaleDate)
	require.ErrorIs(t, w.Check("2024-01-01T10:00:00Z"), ErrStaleDate)
	require.ErrorIs(t, w.Check("yesterday"), ErrStaleDate)

	// Near midnight the skew reaches into the neighbouring day.
	late := DateWindow{MaxSkew: time.Hour, Now: func() time.Time {
		return time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC)
	}}
	require.NoError(t, late.Check("2024-01-01"))

	require.NoError(t, DateWindow{}.Check("anything"))
}
