package provision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/pion/logging"
)

const (
	// DefaultPrefix is the advertised name prefix of unprovisioned devices.
	DefaultPrefix = "PROV_"

	// DefaultScanTimeout bounds a single scan.
	DefaultScanTimeout = 5 * time.Second
)

var (
	// ErrNoSource is returned when a scanner has no advertisement source.
	ErrNoSource = errors.New("provision: no advertisement source")

	// ErrScanInProgress is returned when a scan is started while another runs.
	ErrScanInProgress = errors.New("provision: scan in progress")
)

// AdvertisementSource delivers advertisements until ctx is done.
// ble.Device satisfies it.
type AdvertisementSource interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
}

// Device is a provisionable device seen during a scan.
type Device struct {
	Name        string
	Addr        string
	RSSI        int
	Connectable bool
}

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	Source        AdvertisementSource
	Timeout       time.Duration
	LoggerFactory logging.LoggerFactory
}

// Scanner collects advertisements whose local name carries a prefix.
type Scanner struct {
	src     AdvertisementSource
	timeout time.Duration
	log     logging.LeveledLogger

	mu      sync.Mutex
	running bool
}

// NewScanner creates a Scanner.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScanTimeout
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Scanner{
		src:     cfg.Source,
		timeout: cfg.Timeout,
		log:     cfg.LoggerFactory.NewLogger("provision"),
	}, nil
}

// Scan listens for the scanner timeout and returns the devices whose name
// starts with prefix, in the order first seen. Each name appears once.
func (s *Scanner) Scan(ctx context.Context, prefix string) ([]Device, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var (
		mu    sync.Mutex
		found []Device
		seen  = make(map[string]int)
	)
	handler := func(a ble.Advertisement) {
		name := a.LocalName()
		if name == "" || !strings.HasPrefix(name, prefix) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if i, ok := seen[name]; ok {
			found[i].RSSI = a.RSSI()
			return
		}
		seen[name] = len(found)
		d := Device{Name: name, RSSI: a.RSSI(), Connectable: a.Connectable()}
		if addr := a.Addr(); addr != nil {
			d.Addr = addr.String()
		}
		found = append(found, d)
		s.log.Debugf("found %s (%s) rssi %d", d.Name, d.Addr, d.RSSI)
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.src.Scan(scanCtx, true, handler)

	mu.Lock()
	out := make([]Device, len(found))
	copy(out, found)
	mu.Unlock()

	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return out, err
	}
	s.log.Infof("scan for %q found %d device(s)", prefix, len(out))
	return out, nil
}
