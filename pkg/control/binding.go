package control

import (
	"context"
	"sync"

	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

// Resolver hands out cluster controller handles. controller.Controller
// implements it.
type Resolver interface {
	ClusterController(ctx context.Context, group string, node datamodel.NodeID, cluster datamodel.ClusterID) (*device.ClusterClient, error)
}

// BindingConfig holds what every binding shares.
type BindingConfig struct {
	Group    string
	Node     datamodel.NodeID
	Endpoint datamodel.EndpointID

	Resolver Resolver
	Cache    *state.Cache

	// Queue receives UI mutations. If nil they run on the calling goroutine.
	Queue *ui.Queue

	// Registry tracks subscriptions. If nil, a private one is created.
	Registry *Registry

	// SubscribeParams for attribute subscriptions.
	SubscribeParams device.SubscribeParams

	// OnStateChange observes state transitions (optional).
	OnStateChange StateFunc

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// binding carries the parts common to sliders and dropdowns.
type binding struct {
	group    string
	node     datamodel.NodeID
	key      state.Key
	resolver Resolver
	cache    *state.Cache
	queue    *ui.Queue
	registry *Registry
	params   device.SubscribeParams
	onState  StateFunc
	log      logging.LeveledLogger

	// op serializes Refresh and writes.
	op sync.Mutex

	mu    sync.Mutex
	state State
}

func (b *binding) init(cfg BindingConfig, cluster datamodel.ClusterID, attr datamodel.AttributeID) {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry(lf)
	}
	params := cfg.SubscribeParams
	if params == (device.SubscribeParams{}) {
		params = device.DefaultSubscribeParams()
	}
	b.group = cfg.Group
	b.node = cfg.Node
	b.key = state.Key{
		Node:      cfg.Node,
		Endpoint:  cfg.Endpoint,
		Cluster:   cluster,
		Attribute: attr,
	}
	b.resolver = cfg.Resolver
	b.cache = cfg.Cache
	b.queue = cfg.Queue
	b.registry = reg
	b.params = params
	b.onState = cfg.OnStateChange
	b.log = lf.NewLogger("control")
}

// Key returns the cache key of the bound attribute.
func (b *binding) Key() state.Key { return b.key }

// State returns the current state.
func (b *binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *binding) setState(s State) {
	b.mu.Lock()
	from := b.state
	b.state = s
	b.mu.Unlock()

	if from != s {
		b.log.Tracef("%s: %s -> %s", b.key, from, s)
		if b.onState != nil {
			b.onState(from, s)
		}
	}
}

// post runs fn on the UI queue.
func (b *binding) post(fn func()) {
	if b.queue == nil {
		fn()
		return
	}
	if err := b.queue.Post(fn); err != nil {
		b.log.Debugf("%s: ui update dropped: %v", b.key, err)
	}
}

func (b *binding) resolve(ctx context.Context) (*device.ClusterClient, error) {
	return b.resolver.ClusterController(ctx, b.group, b.node, b.key.Cluster)
}

// Unsubscribe cancels the attribute subscription, if any.
func (b *binding) Unsubscribe() {
	b.registry.Cancel(b.key)
}
