package identity

import (
	"crypto/sha256"
	"math/big"
)

// hashDecimal digests the input with SHA-256 and renders the digest as a
// base-10 integer, the only character set a UID component may use.
func hashDecimal(input []byte) string {
	sum := sha256.Sum256(input)
	return new(big.Int).SetBytes(sum[:]).String()
}

// uuidDecimal renders 16 UUID bytes as the unsigned integer used under the 2.25 arc.
func uuidDecimal(b [16]byte) string {
	return new(big.Int).SetBytes(b[:]).String()
}
