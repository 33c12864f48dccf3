package rmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/clusters/colorcontrol"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("rmaker: closed")

// RemoteTopic is where parameter updates for a node are published.
func RemoteTopic(nodeID string) string { return "node/" + nodeID + "/params/remote" }

// LocalTopic is where a node reports its parameters.
func LocalTopic(nodeID string) string { return "node/" + nodeID + "/params/local" }

// DefaultReadTimeout bounds a read that waits for a first report.
const DefaultReadTimeout = 10 * time.Second

// Payload is the parameter document: device name -> parameter -> value.
type Payload map[string]map[string]any

// Config configures a Controller.
type Config struct {
	Transport Transport

	// Nodes maps node ids to RainMaker node ids. When empty every node id
	// is accepted and formatted as 16 hex digits.
	Nodes map[datamodel.NodeID]string

	// Params defaults to DefaultParamMap.
	Params *ParamMap

	// ReadTimeout bounds reads of attributes the node has not reported yet
	// (default: DefaultReadTimeout).
	ReadTimeout time.Duration

	LoggerFactory logging.LoggerFactory
}

// Controller is a device.Controller for RainMaker nodes.
type Controller struct {
	transport   Transport
	names       map[datamodel.NodeID]string
	params      *ParamMap
	readTimeout time.Duration
	log         logging.LeveledLogger

	mu     sync.Mutex
	nodes  map[datamodel.NodeID]*node
	closed bool
}

var _ device.Controller = (*Controller)(nil)

// NewController creates a controller on transport. Every node listed in
// cfg.Nodes is subscribed right away so reports sent before its first use
// are kept.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, errors.New("rmaker: transport required")
	}
	params := cfg.Params
	if params == nil {
		params = DefaultParamMap()
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	c := &Controller{
		transport:   cfg.Transport,
		names:       cfg.Nodes,
		params:      params,
		readTimeout: readTimeout,
		log:         lf.NewLogger("rmaker"),
		nodes:       make(map[datamodel.NodeID]*node),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, name := range cfg.Nodes {
		if _, err := c.bind(id, name); err != nil {
			for _, n := range c.nodes {
				_ = c.transport.Unsubscribe(LocalTopic(n.name))
			}
			return nil, err
		}
	}
	return c, nil
}

// bind subscribes to the reports of node id. c.mu must be held.
func (c *Controller) bind(id datamodel.NodeID, name string) (*node, error) {
	n := newNode(c, id, name)
	if err := c.transport.Subscribe(LocalTopic(name), n.handleReport); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", LocalTopic(name), err)
	}
	c.nodes[id] = n
	c.log.Debugf("node %s bound to %s", id, name)
	return n, nil
}

func (c *Controller) rmakerID(id datamodel.NodeID) (string, bool) {
	if len(c.names) == 0 {
		return id.String(), true
	}
	name, ok := c.names[id]
	return name, ok
}

// Device returns the handle of node id. Nodes outside cfg.Nodes are
// subscribed on first use.
func (c *Controller) Device(ctx context.Context, id datamodel.NodeID) (device.Device, error) {
	name, ok := c.rmakerID(id)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, device.ErrNodeNotFound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if n, ok := c.nodes[id]; ok {
		return n, nil
	}
	n, err := c.bind(id, name)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Close unsubscribes from every node and ends all subscriptions. The
// transport is left open.
func (c *Controller) Close() error {
	c.mu.Lock()
	nodes := c.nodes
	c.nodes = make(map[datamodel.NodeID]*node)
	c.closed = true
	c.mu.Unlock()

	for _, n := range nodes {
		_ = c.transport.Unsubscribe(LocalTopic(n.name))
		n.cancelAll()
	}
	return nil
}

// node is the device.Device of one RainMaker node.
type node struct {
	ctrl *Controller
	id   datamodel.NodeID
	name string

	mu      sync.Mutex
	values  map[datamodel.AttributePath]int64
	changed chan struct{}
	subs    map[string]*subscription
}

func newNode(c *Controller, id datamodel.NodeID, name string) *node {
	return &node{
		ctrl:    c,
		id:      id,
		name:    name,
		values:  make(map[datamodel.AttributePath]int64),
		changed: make(chan struct{}),
		subs:    make(map[string]*subscription),
	}
}

func (n *node) NodeID() datamodel.NodeID { return n.id }

// handleReport applies a params/local document.
func (n *node) handleReport(_ string, payload []byte) {
	var doc Payload
	if err := json.Unmarshal(payload, &doc); err != nil {
		n.ctrl.log.Warnf("node %s: bad report: %v", n.id, err)
		return
	}

	type update struct {
		path datamodel.AttributePath
		v    int64
	}
	var updates []update
	for dev, params := range doc {
		for name, raw := range params {
			p, ok := n.ctrl.params.ByName(dev, name)
			if !ok {
				continue
			}
			v, err := p.ToAttribute(raw)
			if err != nil {
				n.ctrl.log.Debugf("node %s: %v", n.id, err)
				continue
			}
			updates = append(updates, update{p.Path, v})
		}
	}
	if len(updates) == 0 {
		return
	}

	n.mu.Lock()
	for _, u := range updates {
		n.values[u.path] = u.v
	}
	close(n.changed)
	n.changed = make(chan struct{})
	n.mu.Unlock()

	for _, u := range updates {
		n.fanOut(u.path, u.v)
	}
}

func (n *node) fanOut(path datamodel.AttributePath, v int64) {
	n.mu.Lock()
	var targets []*subscription
	for _, s := range n.subs {
		if s.path == path {
			targets = append(targets, s)
		}
	}
	n.mu.Unlock()

	data := clusters.EncodeInt(v)
	for _, s := range targets {
		s.deliver(data)
	}
}

func (n *node) value(path datamodel.AttributePath) (int64, bool, <-chan struct{}) {
	if v, ok := n.ctrl.params.Static(path); ok {
		return v, true, nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.values[path]
	return v, ok, n.changed
}

// ReadAttribute returns the last reported value. With nothing reported yet
// it waits for a report until ctx is done or the read timeout passes.
func (n *node) ReadAttribute(ctx context.Context, path datamodel.AttributePath) ([]byte, error) {
	if _, ok := n.ctrl.params.ByPath(path); !ok {
		if _, ok := n.ctrl.params.Static(path); !ok {
			return nil, datamodel.ErrUnsupportedAttribute
		}
	}
	ctx, cancel := context.WithTimeout(ctx, n.ctrl.readTimeout)
	defer cancel()
	for {
		v, ok, changed := n.value(path)
		if ok {
			return clusters.EncodeInt(v), nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, fmt.Errorf("read %s on %s: %w", path, n.id, device.ErrTimeout)
		}
	}
}

func (n *node) publish(values map[datamodel.AttributePath]int64) error {
	doc := Payload{}
	for path, v := range values {
		p, ok := n.ctrl.params.ByPath(path)
		if !ok {
			return datamodel.ErrUnsupportedAttribute
		}
		if doc[p.Device] == nil {
			doc[p.Device] = map[string]any{}
		}
		doc[p.Device][p.Name] = p.FromAttribute(v)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	n.ctrl.log.Tracef("node %s publish %s", n.id, payload)
	if err := n.ctrl.transport.Publish(RemoteTopic(n.name), payload); err != nil {
		return fmt.Errorf("%w: %w", device.ErrTimeout, err)
	}
	return nil
}

// WriteAttribute publishes the new value.
func (n *node) WriteAttribute(ctx context.Context, path datamodel.AttributePath, data []byte) error {
	if _, ok := n.ctrl.params.ByPath(path); !ok {
		if _, ok := n.ctrl.params.Static(path); ok {
			return datamodel.ErrUnsupportedWrite
		}
		return datamodel.ErrUnsupportedAttribute
	}
	v, err := clusters.DecodeNumber(data)
	if err != nil {
		return datamodel.ErrConstraintError
	}
	return n.publish(map[datamodel.AttributePath]int64{path: v})
}

// Invoke translates cluster commands into parameter updates.
func (n *node) Invoke(ctx context.Context, path datamodel.CommandPath, fields []byte) ([]byte, error) {
	at := func(cluster datamodel.ClusterID, a datamodel.AttributeID) datamodel.AttributePath {
		return datamodel.AttributePath{Endpoint: path.Endpoint, Cluster: cluster, Attribute: a}
	}
	power := at(onoff.ClusterID, onoff.AttrOnOff)

	switch path.Cluster {
	case onoff.ClusterID:
		switch path.Command {
		case onoff.CmdOff:
			return nil, n.publish(map[datamodel.AttributePath]int64{power: 0})
		case onoff.CmdOn:
			return nil, n.publish(map[datamodel.AttributePath]int64{power: 1})
		case onoff.CmdToggle:
			on, _, _ := n.value(power)
			return nil, n.publish(map[datamodel.AttributePath]int64{power: 1 - min(on, 1)})
		}

	case levelcontrol.ClusterID:
		if path.Command != levelcontrol.CmdMoveToLevel && path.Command != levelcontrol.CmdMoveToLevelWithOnOff {
			break
		}
		var req levelcontrol.MoveToLevelRequest
		if err := clusters.DecodeRequest(fields, &req); err != nil {
			return nil, datamodel.ErrInvalidCommand
		}
		if req.Level > levelcontrol.MaxLevelValue {
			return nil, datamodel.ErrConstraintError
		}
		values := map[datamodel.AttributePath]int64{
			at(levelcontrol.ClusterID, levelcontrol.AttrCurrentLevel): int64(req.Level),
		}
		if path.Command == levelcontrol.CmdMoveToLevelWithOnOff {
			values[power] = int64(min(req.Level, 1))
		}
		return nil, n.publish(values)

	case colorcontrol.ClusterID:
		if path.Command != colorcontrol.CmdMoveToSaturation {
			break
		}
		var req colorcontrol.MoveToSaturationRequest
		if err := clusters.DecodeRequest(fields, &req); err != nil {
			return nil, datamodel.ErrInvalidCommand
		}
		if req.Saturation > colorcontrol.MaxSaturation {
			return nil, datamodel.ErrConstraintError
		}
		return nil, n.publish(map[datamodel.AttributePath]int64{
			at(colorcontrol.ClusterID, colorcontrol.AttrCurrentSaturation): int64(req.Saturation),
		})
	}
	return nil, datamodel.ErrUnsupportedCommand
}

// Subscribe delivers every report of path. The last reported value, if
// any, is delivered first.
func (n *node) Subscribe(ctx context.Context, path datamodel.AttributePath, params device.SubscribeParams, fn device.ReportFunc) (device.Subscription, error) {
	if _, ok := n.ctrl.params.ByPath(path); !ok {
		return nil, datamodel.ErrUnsupportedAttribute
	}
	s := &subscription{
		id:   uuid.NewString(),
		path: path,
		node: n,
		fn:   fn,
		done: make(chan struct{}),
	}
	n.mu.Lock()
	n.subs[s.id] = s
	v, ok := n.values[path]
	n.mu.Unlock()

	if ok {
		s.deliver(clusters.EncodeInt(v))
	}
	return s, nil
}

func (n *node) cancelAll() {
	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[string]*subscription)
	n.mu.Unlock()

	for _, s := range subs {
		s.end()
	}
}

type subscription struct {
	id   string
	path datamodel.AttributePath
	node *node
	fn   device.ReportFunc

	// mu serializes delivery with Cancel so no report follows it.
	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

func (s *subscription) ID() string                    { return s.id }
func (s *subscription) Path() datamodel.AttributePath { return s.path }
func (s *subscription) Done() <-chan struct{}         { return s.done }

func (s *subscription) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.fn(s.path, data)
}

func (s *subscription) end() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	})
}

func (s *subscription) Cancel() error {
	s.node.mu.Lock()
	delete(s.node.subs, s.id)
	s.node.mu.Unlock()
	s.end()
	return nil
}
