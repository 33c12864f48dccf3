package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/logging"
)

// PrefixSetting is the settings key the name prefix is stored under.
const PrefixSetting = "provision.prefix"

var (
	// ErrPrefixLocked is returned by SetPrefix when prefix search is disabled.
	ErrPrefixLocked = errors.New("provision: prefix search not allowed")

	// ErrNoDevice is returned by Select for an index outside the list.
	ErrNoDevice = errors.New("provision: no device at index")
)

// SettingsStore persists small named values. state.Persister satisfies it.
type SettingsStore interface {
	LoadSetting(name string) (string, error)
	SaveSetting(name, value string) error
}

// LandingConfig configures a Landing.
type LandingConfig struct {
	Scanner *Scanner
	// Settings is optional. Without it the prefix lives only in memory.
	Settings SettingsStore
	// Prefix is used when nothing is stored. Defaults to DefaultPrefix.
	Prefix            string
	AllowPrefixSearch bool
	LoggerFactory     logging.LoggerFactory
}

// Landing holds the device list shown before provisioning starts.
type Landing struct {
	scanner  *Scanner
	settings SettingsStore
	allow    bool
	log      logging.LeveledLogger

	mu      sync.Mutex
	prefix  string
	devices []Device
}

// NewLanding creates a Landing, restoring a stored prefix when there is one.
func NewLanding(cfg LandingConfig) *Landing {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	l := &Landing{
		scanner:  cfg.Scanner,
		settings: cfg.Settings,
		allow:    cfg.AllowPrefixSearch,
		log:      cfg.LoggerFactory.NewLogger("provision"),
		prefix:   cfg.Prefix,
	}
	if l.settings != nil {
		if p, err := l.settings.LoadSetting(PrefixSetting); err == nil {
			l.prefix = p
		}
	}
	return l
}

// AllowPrefixSearch reports whether the prefix may be edited.
func (l *Landing) AllowPrefixSearch() bool { return l.allow }

// Prefix returns the current name prefix.
func (l *Landing) Prefix() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prefix
}

// SetPrefix stores a new prefix and rescans with it.
func (l *Landing) SetPrefix(ctx context.Context, prefix string) ([]Device, error) {
	if !l.allow {
		return nil, ErrPrefixLocked
	}
	if l.settings != nil {
		if err := l.settings.SaveSetting(PrefixSetting, prefix); err != nil {
			return nil, fmt.Errorf("provision: save prefix: %w", err)
		}
	}
	l.mu.Lock()
	l.prefix = prefix
	l.mu.Unlock()
	return l.Rescan(ctx)
}

// Scan searches for devices and replaces the list with the result.
func (l *Landing) Scan(ctx context.Context) ([]Device, error) {
	prefix := l.Prefix()
	found, err := l.scanner.Scan(ctx, prefix)
	if err != nil {
		l.log.Warnf("scan for %q: %v", prefix, err)
		return nil, err
	}
	l.mu.Lock()
	l.devices = found
	l.mu.Unlock()
	return l.Devices(), nil
}

// Rescan clears the list before scanning again.
func (l *Landing) Rescan(ctx context.Context) ([]Device, error) {
	l.mu.Lock()
	l.devices = nil
	l.mu.Unlock()
	return l.Scan(ctx)
}

// Devices returns the devices from the last scan.
func (l *Landing) Devices() []Device {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Device, len(l.devices))
	copy(out, l.devices)
	return out
}

// Select returns the device at index i of the list.
func (l *Landing) Select(i int) (Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.devices) {
		return Device{}, fmt.Errorf("%w %d", ErrNoDevice, i)
	}
	d := l.devices[i]
	l.log.Infof("selected %s", d.Name)
	return d, nil
}
