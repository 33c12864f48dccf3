package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Config configures a simulated device framework.
type Config struct {
	// Condition applies to every request.
	Condition NetworkCondition

	// Seed for the loss and jitter generator. Zero uses the current time.
	Seed int64

	// LoggerFactory for creating loggers. Defaults to the pion default factory.
	LoggerFactory logging.LoggerFactory
}

// Controller hosts simulated nodes and implements device.Controller.
type Controller struct {
	net *network
	log logging.LeveledLogger

	mu    sync.RWMutex
	nodes map[datamodel.NodeID]*Node
}

var _ device.Controller = (*Controller)(nil)

// NewController creates an empty simulated fabric.
func NewController(cfg Config) *Controller {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Controller{
		net:   newNetwork(cfg.Condition, seed),
		log:   lf.NewLogger("sim"),
		nodes: make(map[datamodel.NodeID]*Node),
	}
}

// AddNode hosts n.
func (c *Controller) AddNode(n *Node) {
	c.mu.Lock()
	c.nodes[n.ID()] = n
	c.mu.Unlock()
	c.log.Debugf("added node %s (%s)", n.ID(), n.Name())
}

// Node returns the node with the given id, or nil.
func (c *Controller) Node(id datamodel.NodeID) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodes[id]
}

// Nodes returns all nodes ordered by id.
func (c *Controller) Nodes() []*Node {
	c.mu.RLock()
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SetCondition replaces the network condition.
func (c *Controller) SetCondition(cond NetworkCondition) {
	c.net.set(cond)
}

// Close cancels every subscription and waits for report delivery to stop.
func (c *Controller) Close() error {
	for _, n := range c.Nodes() {
		n.cancelAll()
	}
	return nil
}

// Device resolves a node. Offline nodes block until ctx is done.
func (c *Controller) Device(ctx context.Context, id datamodel.NodeID) (device.Device, error) {
	n := c.Node(id)
	if n == nil {
		return nil, fmt.Errorf("node %s: %w", id, device.ErrNodeNotFound)
	}
	if err := c.net.roundTrip(ctx); err != nil {
		return nil, timeoutErr(err)
	}
	if n.Offline() {
		<-ctx.Done()
		return nil, fmt.Errorf("resolve %s: %w", id, device.ErrTimeout)
	}
	return &simDevice{ctrl: c, node: n}, nil
}

func timeoutErr(err error) error {
	if errors.Is(err, device.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", device.ErrTimeout, err)
}

type simDevice struct {
	ctrl *Controller
	node *Node
}

func (d *simDevice) NodeID() datamodel.NodeID { return d.node.ID() }

func (d *simDevice) exchange(ctx context.Context, op Op) error {
	if err := d.ctrl.net.roundTrip(ctx); err != nil {
		return timeoutErr(err)
	}
	if d.node.Offline() {
		return device.ErrTimeout
	}
	return d.node.begin(op)
}

func (d *simDevice) ReadAttribute(ctx context.Context, path datamodel.AttributePath) ([]byte, error) {
	if err := d.exchange(ctx, OpRead); err != nil {
		return nil, err
	}
	return d.node.readValue(path)
}

func (d *simDevice) WriteAttribute(ctx context.Context, path datamodel.AttributePath, data []byte) error {
	if err := d.exchange(ctx, OpWrite); err != nil {
		return err
	}
	c, err := d.node.dm.Lookup(path.ClusterPath())
	if err != nil {
		return err
	}
	d.ctrl.log.Tracef("node %s write %s", d.node.ID(), path)
	return c.WriteAttribute(ctx, path.Attribute, tlv.NewReader(bytes.NewReader(data)))
}

func (d *simDevice) Invoke(ctx context.Context, path datamodel.CommandPath, fields []byte) ([]byte, error) {
	if err := d.exchange(ctx, OpInvoke); err != nil {
		return nil, err
	}
	c, err := d.node.dm.Lookup(path.ClusterPath())
	if err != nil {
		return nil, err
	}
	var r *tlv.Reader
	if len(fields) > 0 {
		r = tlv.NewReader(bytes.NewReader(fields))
	}
	d.ctrl.log.Tracef("node %s invoke %s", d.node.ID(), path)
	return nil, c.InvokeCommand(ctx, path.Command, r)
}

// Subscribe starts a subscription. The current value is delivered first as
// the priming report.
func (d *simDevice) Subscribe(ctx context.Context, path datamodel.AttributePath, params device.SubscribeParams, fn device.ReportFunc) (device.Subscription, error) {
	if err := d.exchange(ctx, OpSubscribe); err != nil {
		return nil, err
	}
	data, err := d.node.readValue(path)
	if err != nil {
		return nil, err
	}

	s := newSubscription(d.node, path, fn)
	d.node.addSubscription(s)
	s.push(data)
	go s.run()

	d.ctrl.log.Debugf("node %s subscription %s on %s", d.node.ID(), s.id, path)
	return s, nil
}
