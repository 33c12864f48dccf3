// Package controller resolves per-cluster controller handles for the nodes
// a user has grouped together.
//
// Example usage:
//
//	ctrl, _ := controller.New(controller.Options{Backend: backend, Topology: topo})
//	ctrl.Start(ctx)
//	cc, err := ctrl.ClusterController(ctx, "living-room", 7, levelcontrol.ClusterID)
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/discovery"
)

// DefaultResolveTimeout bounds handle resolution.
const DefaultResolveTimeout = 10 * time.Second

// Errors
var (
	ErrNotStarted         = errors.New("controller: not started")
	ErrAlreadyStarted     = errors.New("controller: already started")
	ErrNoBackend          = errors.New("controller: no backend")
	ErrUnknownNode        = errors.New("controller: node not in group")
	ErrClusterUnsupported = errors.New("controller: cluster not supported by node")
)

// Options configures the controller.
type Options struct {
	// ResolveTimeout bounds ClusterController when the context has no
	// earlier deadline.
	ResolveTimeout time.Duration

	// Backend is the device framework.
	Backend device.Controller

	// Topology maps groups and nodes to endpoints. If nil an empty topology
	// is created and filled by Discover.
	Topology *Topology

	// Discovery, when set, must find the node's operational record before a
	// handle is returned.
	Discovery *discovery.Resolver

	// CompressedFabricID used for operational lookups.
	CompressedFabricID uint64

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// DefaultOptions returns default controller options.
func DefaultOptions() Options {
	return Options{
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// Controller hands out cluster controller handles.
type Controller struct {
	opts Options
	topo *Topology
	log  logging.LeveledLogger

	started bool
	mu      sync.RWMutex
}

// New creates a new controller with the given options.
func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	if opts.ResolveTimeout == 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}
	topo := opts.Topology
	if topo == nil {
		topo = NewTopology()
	}
	lf := opts.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Controller{
		opts: opts,
		topo: topo,
		log:  lf.NewLogger("controller"),
	}, nil
}

// Start starts the controller.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.log.Infof("started with %d groups", len(c.topo.Groups()))
	return nil
}

// Stop stops the controller.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return ErrNotStarted
	}
	c.started = false
	return nil
}

// IsStarted returns true if the controller is running.
func (c *Controller) IsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Topology returns the group and endpoint layout in use.
func (c *Controller) Topology() *Topology { return c.topo }

// Device resolves the node handle within the resolve timeout.
func (c *Controller) Device(ctx context.Context, node datamodel.NodeID) (device.Device, error) {
	if !c.IsStarted() {
		return nil, ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	defer cancel()
	return c.resolve(ctx, node)
}

func (c *Controller) resolve(ctx context.Context, node datamodel.NodeID) (device.Device, error) {
	if c.opts.Discovery != nil {
		if _, err := c.opts.Discovery.ResolveNode(ctx, c.opts.CompressedFabricID, node); err != nil {
			return nil, fmt.Errorf("discover node %s: %w", node, err)
		}
	}
	dev, err := c.opts.Backend.Device(ctx, node)
	if err != nil {
		if c.opts.Discovery != nil {
			// The record may be stale; look it up again next time.
			c.opts.Discovery.Forget(c.opts.CompressedFabricID, node)
		}
		return nil, fmt.Errorf("resolve node %s: %w", node, err)
	}
	return dev, nil
}

// ClusterController returns a handle on the cluster of node within group.
// The endpoint comes from the topology.
func (c *Controller) ClusterController(ctx context.Context, group string, node datamodel.NodeID, cluster datamodel.ClusterID) (*device.ClusterClient, error) {
	if !c.IsStarted() {
		return nil, ErrNotStarted
	}
	info, ok := c.topo.Node(group, node)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownNode, group, node)
	}
	ep, ok := info.Endpoints[cluster]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04X on %s", ErrClusterUnsupported, uint32(cluster), node)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	defer cancel()
	dev, err := c.resolve(ctx, node)
	if err != nil {
		return nil, err
	}
	return device.NewClusterClient(dev, datamodel.ClusterPath{Endpoint: ep, Cluster: cluster}), nil
}
