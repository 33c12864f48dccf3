package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// X25519KeySize is the size of X25519 scalars and points.
const X25519KeySize = curve25519.ScalarSize

// ErrX25519InvalidKey is returned for keys of the wrong length.
var ErrX25519InvalidKey = errors.New("x25519: invalid key size, must be 32 bytes")

// X25519KeyPair is a Curve25519 key pair.
type X25519KeyPair struct {
	Private [X25519KeySize]byte
	Public  [X25519KeySize]byte
}

// GenerateX25519 creates a key pair from r, or crypto/rand when r is nil.
func GenerateX25519(r io.Reader) (*X25519KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	kp := &X25519KeyPair{}
	if _, err := io.ReadFull(r, kp.Private[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// X25519KeyPairFromPrivate derives the public key for a known scalar.
func X25519KeyPairFromPrivate(priv []byte) (*X25519KeyPair, error) {
	if len(priv) != X25519KeySize {
		return nil, ErrX25519InvalidKey
	}
	kp := &X25519KeyPair{}
	copy(kp.Private[:], priv)
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes the X25519 shared secret with a peer public key.
func (kp *X25519KeyPair) SharedSecret(peer []byte) ([]byte, error) {
	if len(peer) != X25519KeySize {
		return nil, ErrX25519InvalidKey
	}
	return curve25519.X25519(kp.Private[:], peer)
}
