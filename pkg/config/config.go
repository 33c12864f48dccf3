// Package config loads the homectl YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Backends.
const (
	BackendSim    = "sim"
	BackendRMaker = "rmaker"
)

// Node kinds.
const (
	KindLight      = "light"
	KindThermostat = "thermostat"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full configuration file.
type Config struct {
	Backend    string           `yaml:"backend"`
	Group      string           `yaml:"group"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Store      StoreConfig      `yaml:"store"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Controller ControllerConfig `yaml:"controller"`
	Web        WebConfig        `yaml:"web"`
	Provision  ProvisionConfig  `yaml:"provision"`
	Log        LogConfig        `yaml:"log"`
	Topology   []NodeConfig     `yaml:"topology"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QoS            byte          `yaml:"qos"`
	// ReadTimeout bounds a read of a parameter the node has not reported.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type StoreConfig struct {
	// Path of the bolt database. Empty keeps state in memory.
	Path string `yaml:"path"`
}

type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
	// CompressedFabricID is 16 hex digits.
	CompressedFabricID string        `yaml:"compressed_fabric_id"`
	BrowseTimeout      time.Duration `yaml:"browse_timeout"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	// Advertise makes the simulator publish operational records for its nodes.
	Advertise bool `yaml:"advertise"`
	Port      int  `yaml:"port"`
}

// FabricID parses CompressedFabricID.
func (d DiscoveryConfig) FabricID() (uint64, error) {
	if d.CompressedFabricID == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(d.CompressedFabricID, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: discovery.compressed_fabric_id: %v", ErrInvalid, err)
	}
	return id, nil
}

type ControllerConfig struct {
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
}

type WebConfig struct {
	// Listen address. Empty disables the web UI.
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ProvisionConfig struct {
	Prefix            string        `yaml:"prefix"`
	AllowPrefixSearch bool          `yaml:"allow_prefix_search"`
	ScanTimeout       time.Duration `yaml:"scan_timeout"`
	PoP               string        `yaml:"pop"`
}

type LogConfig struct {
	Level  string            `yaml:"level"`
	Scopes map[string]string `yaml:"scopes"`
}

// NodeConfig describes one controlled node.
type NodeConfig struct {
	ID    uint64 `yaml:"id"`
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
	Kind  string `yaml:"kind"`
	// RMakerID is the RainMaker node id used in MQTT topics.
	RMakerID string `yaml:"rmaker_id"`
}

// Default returns a configuration that runs against the simulator.
func Default() *Config {
	c := &Config{
		Backend: BackendSim,
		Group:   "home",
		Topology: []NodeConfig{
			{ID: 1, Name: "Living Room Light", Kind: KindLight},
			{ID: 2, Name: "Bedroom AC", Kind: KindThermostat},
		},
	}
	c.applyDefaults()
	return c
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSim
	}
	if c.Group == "" {
		c.Group = "home"
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.MQTT.ReadTimeout == 0 {
		c.MQTT.ReadTimeout = 10 * time.Second
	}
	if c.Discovery.BrowseTimeout == 0 {
		c.Discovery.BrowseTimeout = 10 * time.Second
	}
	if c.Discovery.LookupTimeout == 0 {
		c.Discovery.LookupTimeout = 5 * time.Second
	}
	if c.Discovery.Port == 0 {
		c.Discovery.Port = 5540
	}
	if c.Controller.ResolveTimeout == 0 {
		c.Controller.ResolveTimeout = 10 * time.Second
	}
	if c.Provision.Prefix == "" {
		c.Provision.Prefix = "PROV_"
	}
	if c.Provision.ScanTimeout == 0 {
		c.Provision.ScanTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Topology {
		if c.Topology[i].Group == "" {
			c.Topology[i].Group = c.Group
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSim:
	case BackendRMaker:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("%w: mqtt.broker is required for the rmaker backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q (supported: sim, rmaker)", ErrInvalid, c.Backend)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0-2, got %d", ErrInvalid, c.MQTT.QoS)
	}
	if _, err := c.Discovery.FabricID(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	for scope, lvl := range c.Log.Scopes {
		if _, err := parseLevel(lvl); err != nil {
			return fmt.Errorf("log.scopes.%s: %w", scope, err)
		}
	}
	seen := make(map[uint64]bool)
	for i, n := range c.Topology {
		if n.ID == 0 {
			return fmt.Errorf("%w: topology[%d].id is required", ErrInvalid, i)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: topology[%d]: duplicate node id %d", ErrInvalid, i, n.ID)
		}
		seen[n.ID] = true
		if n.Kind != KindLight && n.Kind != KindThermostat {
			return fmt.Errorf("%w: topology[%d]: unknown kind %q", ErrInvalid, i, n.Kind)
		}
	}
	return nil
}

func parseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("%w: unknown log level %q", ErrInvalid, s)
}

// LoggerFactory builds a pion logger factory from the log section.
// PION_LOG_* environment variables still apply to scopes not listed.
func (c *Config) LoggerFactory() *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if lvl, err := parseLevel(c.Log.Level); err == nil {
		f.DefaultLogLevel = lvl
	}
	for scope, s := range c.Log.Scopes {
		if lvl, err := parseLevel(s); err == nil {
			f.ScopeLevels[scope] = lvl
		}
	}
	return f
}
