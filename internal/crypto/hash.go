package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

type Hash [HashSize]byte

// HashData hashes the concatenation of parts with blake2b-256.
func HashData(parts ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b only fails for keys longer than 64 bytes.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var result Hash
	copy(result[:], h.Sum(nil))
	return result
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
