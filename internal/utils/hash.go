package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns a hex BLAKE2b-256 of the parts joined by a NUL byte.
// Used to build fixed-length storage keys out of arbitrary text.
func Digest(parts ...string) string {
	h, _ := blake2b.New256(nil)
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
