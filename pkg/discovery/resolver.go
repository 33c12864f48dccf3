package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/datamodel"
)

const (
	DefaultBrowseTimeout = 10 * time.Second
	DefaultLookupTimeout = 5 * time.Second

	// DefaultCacheTTL is how long a resolved operational record is reused.
	DefaultCacheTTL = 30 * time.Second
)

// ResolvedService is one DNS-SD answer.
type ResolvedService struct {
	ServiceType  ServiceType
	InstanceName string
	HostName     string
	Port         int

	// IPs are ordered by SortIPsByPreference.
	IPs  []net.IP
	Text map[string]string
}

// PreferredIP returns the first address, or nil when there is none.
func (r *ResolvedService) PreferredIP() net.IP {
	if len(r.IPs) == 0 {
		return nil
	}
	return r.IPs[0]
}

// MDNSResolver performs the raw DNS-SD queries.
//
// Both calls return at once and deliver on entries from another goroutine,
// closing it when ctx ends or no more answers will come. Callers never
// close entries.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

func newZeroconfResolver() (MDNSResolver, error) {
	return zeroconf.NewResolver(nil)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// MDNSResolver defaults to a grandcat/zeroconf resolver on all interfaces.
	MDNSResolver MDNSResolver

	// BrowseTimeout and LookupTimeout bound calls whose context has no deadline.
	BrowseTimeout time.Duration
	LookupTimeout time.Duration

	// CacheTTL bounds how long ResolveNode reuses an answer. Negative
	// disables the cache; zero uses DefaultCacheTTL.
	CacheTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time

	LoggerFactory logging.LoggerFactory
}

type cachedService struct {
	svc     ResolvedService
	expires time.Time
}

// Resolver finds operational and commissionable nodes over DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger

	mu    sync.Mutex
	cache map[string]cachedService
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.MDNSResolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		config.MDNSResolver = zr
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Resolver{
		config:   config,
		resolver: config.MDNSResolver,
		log:      config.LoggerFactory.NewLogger("discovery"),
		cache:    make(map[string]cachedService),
	}, nil
}

func (r *Resolver) cached(instance string) (*ResolvedService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cache[instance]
	if !ok {
		return nil, false
	}
	if !r.config.Now().Before(c.expires) {
		delete(r.cache, instance)
		return nil, false
	}
	svc := c.svc
	return &svc, true
}

// Forget drops the cached record of node, forcing the next ResolveNode to
// query the network.
func (r *Resolver) Forget(compressedFabricID uint64, node datamodel.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, OperationalInstanceName(compressedFabricID, node))
}

// ResolveNode looks up the operational record of node on the given fabric.
func (r *Resolver) ResolveNode(ctx context.Context, compressedFabricID uint64, node datamodel.NodeID) (*ResolvedService, error) {
	instance := OperationalInstanceName(compressedFabricID, node)
	if svc, ok := r.cached(instance); ok {
		return svc, nil
	}
	svc, err := r.Lookup(ctx, ServiceTypeOperational, instance)
	if err != nil {
		r.log.Debugf("resolve %s: %v", instance, err)
		return nil, err
	}
	r.log.Debugf("resolved %s at %s:%d", instance, svc.PreferredIP(), svc.Port)
	if r.config.CacheTTL > 0 {
		r.mu.Lock()
		r.cache[instance] = cachedService{svc: *svc, expires: r.config.Now().Add(r.config.CacheTTL)}
		r.mu.Unlock()
	}
	return svc, nil
}

// Lookup returns the first answer for instanceName. It fails with
// ErrServiceNotFound when the query ends unanswered and ErrTimeout when
// the deadline passes.
func (r *Resolver) Lookup(ctx context.Context, serviceType ServiceType, instanceName string) (*ResolvedService, error) {
	service := serviceType.ServiceString()
	if service == "" {
		return nil, ErrInvalidServiceType
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}
	lookupCtx, stop := context.WithCancel(ctx)
	defer stop()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.resolver.Lookup(lookupCtx, instanceName, service, DefaultDomain, entries); err != nil {
		return nil, err
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, ErrServiceNotFound
			}
			if entry == nil || entry.Instance != instanceName {
				continue
			}
			svc := entryToResolvedService(entry, serviceType)
			return &svc, nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
	}
}

// BrowseOperational discovers operational nodes. The returned channel is
// closed when the browse ends.
func (r *Resolver) BrowseOperational(ctx context.Context) (<-chan ResolvedService, error) {
	return r.browse(ctx, ServiceTypeOperational)
}

// BrowseCommissionable discovers nodes in commissioning mode.
func (r *Resolver) BrowseCommissionable(ctx context.Context) (<-chan ResolvedService, error) {
	return r.browse(ctx, ServiceTypeCommissionable)
}

func (r *Resolver) browse(ctx context.Context, serviceType ServiceType) (<-chan ResolvedService, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.resolver.Browse(ctx, serviceType.ServiceString(), DefaultDomain, entries); err != nil {
		cancel()
		return nil, err
	}

	results := make(chan ResolvedService)
	go func() {
		defer close(results)
		defer cancel()
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case results <- entryToResolvedService(entry, serviceType):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return results, nil
}

func entryToResolvedService(entry *zeroconf.ServiceEntry, serviceType ServiceType) ResolvedService {
	ips := append(append([]net.IP{}, entry.AddrIPv6...), entry.AddrIPv4...)

	return ResolvedService{
		ServiceType:  serviceType,
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(ips),
		Text:         ParseTXT(entry.Text),
	}
}
