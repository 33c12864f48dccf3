package provision

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"io"
	"sync"

	"github.com/go-ble/ble"

	"github.com/rmaker/homectl/pkg/crypto"
)

// MockAdvertisement is a fixed ble.Advertisement.
type MockAdvertisement struct {
	Name           string
	Address        string
	Strength       int
	NotConnectable bool
}

func (a *MockAdvertisement) LocalName() string              { return a.Name }
func (a *MockAdvertisement) ManufacturerData() []byte       { return nil }
func (a *MockAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (a *MockAdvertisement) Services() []ble.UUID           { return nil }
func (a *MockAdvertisement) OverflowService() []ble.UUID    { return nil }
func (a *MockAdvertisement) TxPowerLevel() int              { return 0 }
func (a *MockAdvertisement) Connectable() bool              { return !a.NotConnectable }
func (a *MockAdvertisement) SolicitedService() []ble.UUID   { return nil }
func (a *MockAdvertisement) RSSI() int                      { return a.Strength }
func (a *MockAdvertisement) Addr() ble.Addr                 { return ble.NewAddr(a.Address) }

// MockSource replays registered advertisements on every scan, then waits for
// the scan context to end.
type MockSource struct {
	mu    sync.Mutex
	ads   []ble.Advertisement
	scans int
}

// NewMockSource creates an empty MockSource.
func NewMockSource() *MockSource { return &MockSource{} }

// Advertise adds advertisements to replay.
func (m *MockSource) Advertise(ads ...ble.Advertisement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads = append(m.ads, ads...)
}

// Clear removes all advertisements.
func (m *MockSource) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads = nil
}

// Scans returns how many scans have run.
func (m *MockSource) Scans() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

// Scan implements AdvertisementSource.
func (m *MockSource) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	m.mu.Lock()
	m.scans++
	ads := make([]ble.Advertisement, len(m.ads))
	copy(ads, m.ads)
	m.mu.Unlock()

	for _, a := range ads {
		if ctx.Err() != nil {
			break
		}
		h(a)
	}
	<-ctx.Done()
	return ctx.Err()
}

// MockDevice is the device half of a Security1 session. It implements
// SessionTransport so a client can handshake with it directly.
type MockDevice struct {
	pop    []byte
	kp     *crypto.X25519KeyPair
	random []byte

	mu        sync.Mutex
	clientPub []byte
	stream    cipher.Stream
	done      bool
}

// NewMockDevice creates a device expecting pop, which may be empty.
func NewMockDevice(pop string) (*MockDevice, error) {
	kp, err := crypto.GenerateX25519(nil)
	if err != nil {
		return nil, err
	}
	random := make([]byte, DeviceRandomSize)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return nil, err
	}
	return &MockDevice{pop: []byte(pop), kp: kp, random: random}, nil
}

// Command0 implements SessionTransport.
func (d *MockDevice) Command0(ctx context.Context, clientPub []byte) ([]byte, []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	shared, err := d.kp.SharedSecret(clientPub)
	if err != nil {
		return nil, nil, err
	}
	stream, err := crypto.NewAES256CTR(sessionKey(shared, d.pop), d.random)
	if err != nil {
		return nil, nil, err
	}
	d.stream = stream
	d.clientPub = append([]byte(nil), clientPub...)
	return append([]byte(nil), d.kp.Public[:]...), append([]byte(nil), d.random...), nil
}

// Command1 implements SessionTransport.
func (d *MockDevice) Command1(ctx context.Context, clientVerify []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil || len(clientVerify) != crypto.X25519KeySize {
		return nil, ErrBadHandshake
	}
	plain := make([]byte, len(clientVerify))
	d.stream.XORKeyStream(plain, clientVerify)
	if subtle.ConstantTimeCompare(plain, d.kp.Public[:]) != 1 {
		return nil, ErrVerifyFailed
	}
	verify := make([]byte, len(d.clientPub))
	d.stream.XORKeyStream(verify, d.clientPub)
	d.done = true
	return verify, nil
}

// Crypt advances the device keystream over data.
func (d *MockDevice) Crypt(data []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.done {
		return nil, ErrSessionNotEstablished
	}
	out := make([]byte, len(data))
	d.stream.XORKeyStream(out, data)
	return out, nil
}
