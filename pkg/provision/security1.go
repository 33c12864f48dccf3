package provision

import (
	"context"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/rmaker/homectl/pkg/crypto"
)

// DeviceRandomSize is the length of the device random used as the CTR IV.
const DeviceRandomSize = crypto.AESCTRIVSize

var (
	// ErrSessionNotEstablished is returned when encrypting before the handshake completes.
	ErrSessionNotEstablished = errors.New("provision: session not established")

	// ErrVerifyFailed is returned when the device proof does not match.
	ErrVerifyFailed = errors.New("provision: session verification failed")

	// ErrBadHandshake is returned for malformed handshake messages or
	// messages received out of order.
	ErrBadHandshake = errors.New("provision: bad handshake message")
)

// SessionTransport carries the two Security1 handshake exchanges.
type SessionTransport interface {
	// Command0 sends the client public key and returns the device public
	// key and device random.
	Command0(ctx context.Context, clientPub []byte) (devicePub, deviceRandom []byte, err error)
	// Command1 sends the client verify data and returns the device's.
	Command1(ctx context.Context, clientVerify []byte) (deviceVerify []byte, err error)
}

type sessionStep int

const (
	stepStart sessionStep = iota
	stepVerify
	stepDone
)

// Security1 is the client half of an X25519 / AES-256-CTR session with an
// optional proof of possession.
type Security1 struct {
	pop []byte
	kp  *crypto.X25519KeyPair

	mu        sync.Mutex
	step      sessionStep
	devicePub []byte
	stream    cipher.Stream
}

// NewSecurity1 creates a session with a fresh key pair. pop may be empty.
func NewSecurity1(pop string) (*Security1, error) {
	kp, err := crypto.GenerateX25519(nil)
	if err != nil {
		return nil, fmt.Errorf("provision: generate key: %w", err)
	}
	return &Security1{pop: []byte(pop), kp: kp}, nil
}

// ClientPublicKey returns the key sent in the first command.
func (s *Security1) ClientPublicKey() []byte {
	out := make([]byte, crypto.X25519KeySize)
	copy(out, s.kp.Public[:])
	return out
}

// sessionKey derives the AES key from the shared secret and proof of possession.
func sessionKey(shared, pop []byte) []byte {
	key := make([]byte, len(shared))
	copy(key, shared)
	if len(pop) == 0 {
		return key
	}
	digest := crypto.SHA256(pop)
	for i := range key {
		key[i] ^= digest[i]
	}
	return key
}

// HandleResponse0 processes the device key and random and returns the
// client verify data: the device public key encrypted with the session key.
func (s *Security1) HandleResponse0(devicePub, deviceRandom []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != stepStart {
		return nil, ErrBadHandshake
	}
	if len(devicePub) != crypto.X25519KeySize || len(deviceRandom) != DeviceRandomSize {
		return nil, ErrBadHandshake
	}
	shared, err := s.kp.SharedSecret(devicePub)
	if err != nil {
		return nil, fmt.Errorf("provision: key agreement: %w", err)
	}
	stream, err := crypto.NewAES256CTR(sessionKey(shared, s.pop), deviceRandom)
	if err != nil {
		return nil, err
	}
	s.stream = stream
	s.devicePub = append([]byte(nil), devicePub...)

	verify := make([]byte, len(devicePub))
	s.stream.XORKeyStream(verify, devicePub)
	s.step = stepVerify
	return verify, nil
}

// HandleResponse1 checks that the device verify data decrypts to the
// client public key.
func (s *Security1) HandleResponse1(deviceVerify []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != stepVerify {
		return ErrBadHandshake
	}
	if len(deviceVerify) != crypto.X25519KeySize {
		return ErrBadHandshake
	}
	plain := make([]byte, len(deviceVerify))
	s.stream.XORKeyStream(plain, deviceVerify)
	if subtle.ConstantTimeCompare(plain, s.kp.Public[:]) != 1 {
		return ErrVerifyFailed
	}
	s.step = stepDone
	return nil
}

// Established reports whether the handshake completed.
func (s *Security1) Established() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step == stepDone
}

// Encrypt encrypts an application payload.
func (s *Security1) Encrypt(data []byte) ([]byte, error) {
	return s.xor(data)
}

// Decrypt decrypts an application payload.
func (s *Security1) Decrypt(data []byte) ([]byte, error) {
	return s.xor(data)
}

// xor advances the shared keystream. Both directions use one stream, so
// payloads must be processed in the order they are exchanged.
func (s *Security1) xor(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != stepDone {
		return nil, ErrSessionNotEstablished
	}
	out := make([]byte, len(data))
	s.stream.XORKeyStream(out, data)
	return out, nil
}

// Establish runs the full handshake over t.
func (s *Security1) Establish(ctx context.Context, t SessionTransport) error {
	devicePub, deviceRandom, err := t.Command0(ctx, s.ClientPublicKey())
	if err != nil {
		return fmt.Errorf("provision: session command 0: %w", err)
	}
	verify, err := s.HandleResponse0(devicePub, deviceRandom)
	if err != nil {
		return err
	}
	deviceVerify, err := t.Command1(ctx, verify)
	if err != nil {
		return fmt.Errorf("provision: session command 1: %w", err)
	}
	return s.HandleResponse1(deviceVerify)
}
