// Package cryptoutil provides the hash primitive shared by the DHT
// addressing scheme and the PHT's own Prefix hashing.
package cryptoutil

import (
	"crypto/rand"

	"golang.org/x/crypto/sha3"
)

const (
	// HashSizeByte is the size of a Digest output, in bytes.
	HashSizeByte = 32
	// HashID identifies the hash function used by Digest.
	HashID = "SHAKE128"
)

// Digest hashes all of the passed byte slices, in order, into a single
// fixed-size digest. None of the passed slices are mutated.
func Digest(ms ...[]byte) []byte {
	h := sha3.NewShake128()
	for _, m := range ms {
		h.Write(m)
	}
	ret := make([]byte, HashSizeByte)
	h.Read(ret)
	return ret
}

// MakeRand returns HashSizeByte random bytes, hashed before being
// returned so that raw crypto/rand output is never revealed on the wire.
func MakeRand() ([]byte, error) {
	r := make([]byte, HashSizeByte)
	if _, err := rand.Read(r); err != nil {
		return nil, err
	}
	return Digest(r), nil
}
