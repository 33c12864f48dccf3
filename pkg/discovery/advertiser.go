package discovery

import (
	"net"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/datamodel"
)

// MDNSServer is a running mDNS registration.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

// zeroconfServerFactory is the production implementation using grandcat/zeroconf.
type zeroconfServerFactory struct{}

func (z *zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// CompressedFabricID is the fabric the advertised nodes belong to.
	CompressedFabricID uint64

	// Port is the port to advertise (default: 5540).
	Port int

	// Interfaces restricts advertising. If nil, all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory is the factory for creating mDNS servers.
	// If nil, the default zeroconf factory is used.
	ServerFactory MDNSServerFactory

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes operational records for a set of nodes.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu      sync.Mutex
	servers map[datamodel.NodeID]MDNSServer
	closed  bool
}

// NewAdvertiser creates a new Advertiser with the given configuration.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Port <= 0 || config.Port > 65535 {
		config.Port = DefaultPort
	}
	factory := config.ServerFactory
	if factory == nil {
		factory = &zeroconfServerFactory{}
	}
	lf := config.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Advertiser{
		config:  config,
		factory: factory,
		log:     lf.NewLogger("discovery"),
		servers: make(map[datamodel.NodeID]MDNSServer),
	}
}

// AdvertiseNode starts publishing the operational record of node.
func (a *Advertiser) AdvertiseNode(node datamodel.NodeID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if _, ok := a.servers[node]; ok {
		return ErrAlreadyStarted
	}

	instance := OperationalInstanceName(a.config.CompressedFabricID, node)
	txt := []string{"SII=" + strconv.Itoa(5000), "SAI=" + strconv.Itoa(300), "T=0"}
	server, err := a.factory.Register(instance, ServiceOperational, DefaultDomain, a.config.Port, txt, a.config.Interfaces)
	if err != nil {
		return err
	}
	a.servers[node] = server
	a.log.Infof("advertising %s on port %d", instance, a.config.Port)
	return nil
}

// StopNode withdraws the record of node.
func (a *Advertiser) StopNode(node datamodel.NodeID) {
	a.mu.Lock()
	server := a.servers[node]
	delete(a.servers, node)
	a.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
}

// IsAdvertising reports whether node is published.
func (a *Advertiser) IsAdvertising(node datamodel.NodeID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.servers[node]
	return ok
}

// Close withdraws every record.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	servers := a.servers
	a.servers = make(map[datamodel.NodeID]MDNSServer)
	a.closed = true
	a.mu.Unlock()

	for _, s := range servers {
		s.Shutdown()
	}
	return nil
}
