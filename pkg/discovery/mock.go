package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/rmaker/homectl/pkg/datamodel"
)

// MockMDNSResolver provides a mock mDNS resolver for testing without real network I/O.
// Registered services are returned by Browse and Lookup.
type MockMDNSResolver struct {
	mu       sync.RWMutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		services: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// RegisterService registers a service that will be returned by Browse/Lookup.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// ClearServices removes all registered services.
func (m *MockMDNSResolver) ClearServices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[string][]*zeroconf.ServiceEntry)
}

func (m *MockMDNSResolver) entries(service string) []*zeroconf.ServiceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*zeroconf.ServiceEntry, len(m.services[service]))
	copy(out, m.services[service])
	return out
}

// Browse implements MDNSResolver. Like zeroconf it delivers from its own
// goroutine and closes entries when done.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	found := m.entries(service)
	go func() {
		defer close(entries)
		for _, entry := range found {
			select {
			case entries <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Lookup implements MDNSResolver.
func (m *MockMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	found := m.entries(service)
	go func() {
		defer close(entries)
		for _, entry := range found {
			if entry.Instance != instance {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
			}
			return
		}
	}()
	return nil
}

// MockOperationalService creates a mock operational service entry for testing.
func MockOperationalService(compressedFabricID uint64, node datamodel.NodeID, port int, ip net.IP) *zeroconf.ServiceEntry {
	instance := OperationalInstanceName(compressedFabricID, node)
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  ServiceOperational,
			Domain:   DefaultDomain,
		},
		HostName: instance + ".local.",
		Port:     port,
		AddrIPv4: []net.IP{ip},
		Text:     []string{"SII=5000", "SAI=300"},
	}
}

// MockMDNSServerFactory records registrations instead of publishing them.
// Registered operational records become visible through Resolver when a
// MockMDNSResolver is attached.
type MockMDNSServerFactory struct {
	Resolver *MockMDNSResolver

	mu     sync.Mutex
	active map[string]bool
}

// Register implements MDNSServerFactory.
func (f *MockMDNSServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	if f.active == nil {
		f.active = make(map[string]bool)
	}
	f.active[instance] = true
	f.mu.Unlock()

	if f.Resolver != nil {
		f.Resolver.RegisterService(service, &zeroconf.ServiceEntry{
			ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: service, Domain: domain},
			HostName:      instance + ".local.",
			Port:          port,
			AddrIPv6:      []net.IP{net.ParseIP("fd00::1")},
			Text:          txt,
		})
	}
	return &mockServer{factory: f, instance: instance}, nil
}

// Active reports whether instance is registered.
func (f *MockMDNSServerFactory) Active(instance string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[instance]
}

type mockServer struct {
	factory  *MockMDNSServerFactory
	instance string
}

func (s *mockServer) Shutdown() {
	s.factory.mu.Lock()
	delete(s.factory.active, s.instance)
	s.factory.mu.Unlock()
}
