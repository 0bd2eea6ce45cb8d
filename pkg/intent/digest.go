package intent

import (
	"encoding/hex"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const DigestLength = blake2b.Size256

// Digest is a BLAKE2b-256 hash.
type Digest [DigestLength]byte

// Blake2b256 hashes the concatenation of parts.
func Blake2b256(parts ...[]byte) Digest {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String renders the digest in Base58, the form Sui tooling displays.
func (d Digest) String() string {
	return base58.Encode(d[:])
}
