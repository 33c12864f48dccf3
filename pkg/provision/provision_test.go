package provision

import (
	"context"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/state"
)

func newTestScanner(t *testing.T, src AdvertisementSource) *Scanner {
	t.Helper()
	s, err := NewScanner(ScannerConfig{Source: src, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	return s
}

func adv(name, addr string, rssi int) ble.Advertisement {
	return &MockAdvertisement{Name: name, Address: addr, Strength: rssi}
}

func TestNewScannerRequiresSource(t *testing.T) {
	_, err := NewScanner(ScannerConfig{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestScannerFiltersAndDedupes(t *testing.T) {
	src := NewMockSource()
	src.Advertise(
		adv("PROV_kitchen", "aa:bb:cc:00:00:01", -70),
		adv("Headphones", "aa:bb:cc:00:00:02", -50),
		adv("PROV_hall", "aa:bb:cc:00:00:03", -60),
		adv("PROV_kitchen", "aa:bb:cc:00:00:01", -40),
		adv("", "aa:bb:cc:00:00:04", -30),
	)

	devices, err := newTestScanner(t, src).Scan(context.Background(), DefaultPrefix)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "PROV_kitchen", devices[0].Name)
	assert.Equal(t, "aa:bb:cc:00:00:01", devices[0].Addr)
	assert.Equal(t, -40, devices[0].RSSI, "latest RSSI is kept")
	assert.True(t, devices[0].Connectable)
	assert.Equal(t, "PROV_hall", devices[1].Name)
}

func TestScannerEmptyPrefix(t *testing.T) {
	src := NewMockSource()
	src.Advertise(adv("PROV_a", "01", -1), adv("Other", "02", -1), adv("", "03", -1))

	devices, err := newTestScanner(t, src).Scan(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestScannerCancelled(t *testing.T) {
	src := NewMockSource()
	s, err := NewScanner(ScannerConfig{Source: src, Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx, DefaultPrefix)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScannerRejectsConcurrentScan(t *testing.T) {
	defer test.CheckRoutines(t)()

	src := NewMockSource()
	s, err := NewScanner(ScannerConfig{Source: src, Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Scan(ctx, DefaultPrefix)
	}()
	require.Eventually(t, func() bool { return src.Scans() == 1 }, time.Second, time.Millisecond)

	_, err = s.Scan(context.Background(), DefaultPrefix)
	assert.ErrorIs(t, err, ErrScanInProgress)

	cancel()
	<-done
}

func TestLandingPrefix(t *testing.T) {
	src := NewMockSource()
	scanner := newTestScanner(t, src)

	l := NewLanding(LandingConfig{Scanner: scanner})
	assert.Equal(t, DefaultPrefix, l.Prefix())
	assert.False(t, l.AllowPrefixSearch())

	_, err := l.SetPrefix(context.Background(), "ESP_")
	assert.ErrorIs(t, err, ErrPrefixLocked)
	assert.Equal(t, DefaultPrefix, l.Prefix())
}

func TestLandingPersistsPrefix(t *testing.T) {
	src := NewMockSource()
	src.Advertise(adv("PROV_a", "01", -1), adv("ESP_b", "02", -1))
	store := state.NewMemoryPersister()

	l := NewLanding(LandingConfig{
		Scanner:           newTestScanner(t, src),
		Settings:          store,
		AllowPrefixSearch: true,
	})
	devices, err := l.SetPrefix(context.Background(), "ESP_")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "ESP_b", devices[0].Name)
	assert.Equal(t, 1, src.Scans())

	v, err := store.LoadSetting(PrefixSetting)
	require.NoError(t, err)
	assert.Equal(t, "ESP_", v)

	restored := NewLanding(LandingConfig{Scanner: newTestScanner(t, src), Settings: store})
	assert.Equal(t, "ESP_", restored.Prefix())
}

func TestLandingRescanAndSelect(t *testing.T) {
	src := NewMockSource()
	src.Advertise(adv("PROV_a", "01", -1), adv("PROV_b", "02", -1))
	l := NewLanding(LandingConfig{Scanner: newTestScanner(t, src)})

	_, err := l.Select(0)
	assert.ErrorIs(t, err, ErrNoDevice)

	devices, err := l.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	d, err := l.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "PROV_b", d.Name)

	_, err = l.Select(2)
	assert.ErrorIs(t, err, ErrNoDevice)

	src.Clear()
	devices, err = l.Rescan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Empty(t, l.Devices())
}

func TestSecurity1Handshake(t *testing.T) {
	for _, pop := range []string{"", "abcd1234"} {
		dev, err := NewMockDevice(pop)
		require.NoError(t, err)
		sess, err := NewSecurity1(pop)
		require.NoError(t, err)

		require.NoError(t, sess.Establish(context.Background(), dev), "pop %q", pop)
		assert.True(t, sess.Established())

		req := []byte(`{"ssid":"home","passphrase":"secret"}`)
		enc, err := sess.Encrypt(req)
		require.NoError(t, err)
		assert.NotEqual(t, req, enc)
		got, err := dev.Crypt(enc)
		require.NoError(t, err)
		assert.Equal(t, req, got)

		resp := []byte("status: ok")
		encResp, err := dev.Crypt(resp)
		require.NoError(t, err)
		got, err = sess.Decrypt(encResp)
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	}
}

func TestSecurity1WrongPoP(t *testing.T) {
	dev, err := NewMockDevice("abcd1234")
	require.NoError(t, err)
	sess, err := NewSecurity1("wrong")
	require.NoError(t, err)

	err = sess.Establish(context.Background(), dev)
	assert.ErrorIs(t, err, ErrVerifyFailed)
	assert.False(t, sess.Established())

	_, err = sess.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotEstablished)
}

func TestSecurity1OutOfOrder(t *testing.T) {
	sess, err := NewSecurity1("")
	require.NoError(t, err)

	assert.ErrorIs(t, sess.HandleResponse1(make([]byte, 32)), ErrBadHandshake)

	_, err = sess.HandleResponse0(make([]byte, 5), make([]byte, DeviceRandomSize))
	assert.ErrorIs(t, err, ErrBadHandshake)
}

// forgedProofDevice answers Command1 with garbage.
type forgedProofDevice struct{ *MockDevice }

func (d forgedProofDevice) Command1(ctx context.Context, v []byte) ([]byte, error) {
	if _, err := d.MockDevice.Command1(ctx, v); err != nil {
		return nil, err
	}
	return make([]byte, 32), nil
}

func TestSecurity1RejectsBadDeviceProof(t *testing.T) {
	dev, err := NewMockDevice("")
	require.NoError(t, err)
	sess, err := NewSecurity1("")
	require.NoError(t, err)

	err = sess.Establish(context.Background(), forgedProofDevice{dev})
	assert.ErrorIs(t, err, ErrVerifyFailed)
}
