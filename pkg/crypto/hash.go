// Package crypto holds the primitives used by provisioning sessions.
package crypto

import "crypto/sha256"

// SHA256LenBytes is the SHA-256 digest length.
const SHA256LenBytes = 32

// SHA256 computes the SHA-256 hash of a message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// SHA256Slice computes the SHA-256 hash and returns it as a slice.
func SHA256Slice(message []byte) []byte {
	h := sha256.Sum256(message)
	return h[:]
}
