package intent

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestPersonalMessageEncoding(t *testing.T) {
	msg := Wrap(PersonalMessage(), []byte("hi"))
	b, err := msg.Bytes()
	require.NoError(t, err)
	require.Equal(t, "030000026869", hex.EncodeToString(b))

	d, err := msg.Digest()
	require.NoError(t, err)
	require.Equal(t, Digest(blake2b.Sum256(b)), d)
}

func TestPersonalMessageText(t *testing.T) {
	require.Equal(t, "I support AI model creators! 2024-01-01", PersonalMessageText("2024-01-01"))
	require.Equal(t, []byte("I support AI model creators! "), PersonalMessageBytes(""))

	a, err := PersonalMessageDigest("2024-01-01")
	require.NoError(t, err)
	b, err := PersonalMessageDigest("2024-01-02")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestEnclaveIntentNeverMatchesPersonalMessage(t *testing.T) {
	inbound := PersonalMessage()
	for s := 0; s <= 255; s++ {
		out := Enclave(Scope(s))
		require.NotEqual(t, inbound.Bytes(), out.Bytes(), "scope %d", s)
	}
}

func TestEnclaveMessageEncoding(t *testing.T) {
	type payload struct {
		TimestampMs uint64
		Seed        uint32
	}
	b, err := Wrap(Enclave(ScopeProcessData), payload{TimestampMs: 1, Seed: 2}).Bytes()
	require.NoError(t, err)
	require.Equal(t, "000003"+"0100000000000000"+"02000000", hex.EncodeToString(b))
}

func TestDigestRendering(t *testing.T) {
	var d Digest
	require.Equal(t, "11111111111111111111111111111111", d.String())
	require.Len(t, d.Hex(), 64)

	require.Equal(t, Blake2b256([]byte("ab")), Blake2b256([]byte("a"), []byte("b")))
}
