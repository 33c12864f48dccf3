package sim

import (
	"sync"

	"github.com/rmaker/homectl/pkg/clusters/basic"
	"github.com/rmaker/homectl/pkg/clusters/colorcontrol"
	"github.com/rmaker/homectl/pkg/clusters/descriptor"
	"github.com/rmaker/homectl/pkg/clusters/levelcontrol"
	"github.com/rmaker/homectl/pkg/clusters/onoff"
	"github.com/rmaker/homectl/pkg/clusters/thermostat"
	"github.com/rmaker/homectl/pkg/datamodel"
)

// Op is a device operation kind, used for failure injection.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
	OpInvoke
	OpSubscribe
)

// String returns the name of the operation.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpInvoke:
		return "invoke"
	case OpSubscribe:
		return "subscribe"
	default:
		return "unknown"
	}
}

// Node is a simulated Matter node.
type Node struct {
	id   datamodel.NodeID
	name string
	dm   *datamodel.Node

	mu       sync.Mutex
	offline  bool
	failNext map[Op][]error
	subs     map[string]*subscription
	counts   map[Op]int
}

// NewNode creates a node with only the root endpoint, which hosts Basic
// Information labelled name.
func NewNode(id datamodel.NodeID, name string) *Node {
	n := &Node{
		id:       id,
		name:     name,
		dm:       datamodel.NewNode(),
		failNext: make(map[Op][]error),
		subs:     make(map[string]*subscription),
		counts:   make(map[Op]int),
	}
	root := datamodel.NewEndpoint(descriptor.RootEndpoint)
	root.AddCluster(basic.New(basic.Config{
		VendorName:  "homectl",
		VendorID:    0xFFF1,
		ProductName: "Simulated Node",
		ProductID:   0x8000,
		NodeLabel:   name,
	}))
	n.AddEndpoint(root)
	return n
}

// ID returns the node id.
func (n *Node) ID() datamodel.NodeID { return n.id }

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// AddEndpoint hosts ep on the node and routes its change notifications to
// subscribers. A Descriptor cluster is added when ep has none.
func (n *Node) AddEndpoint(ep *datamodel.Endpoint) {
	if ep.Cluster(descriptor.ClusterID) == nil {
		ep.AddCluster(descriptor.New(descriptor.Config{EndpointID: ep.ID(), Node: n.dm}))
	}
	for _, id := range ep.ClusterIDs() {
		ep.Cluster(id).SetChangeListener(n.attributeChanged)
	}
	n.dm.AddEndpoint(ep)
}

// Endpoints lists the hosted endpoints.
func (n *Node) Endpoints() []*datamodel.Endpoint { return n.dm.Endpoints() }

// Cluster returns the server cluster at path, or nil.
func (n *Node) Cluster(path datamodel.ClusterPath) datamodel.Cluster {
	c, err := n.dm.Lookup(path)
	if err != nil {
		return nil
	}
	return c
}

// SetOffline makes the node unreachable. Resolution then blocks until the
// caller gives up, and requests on existing handles time out.
func (n *Node) SetOffline(offline bool) {
	n.mu.Lock()
	n.offline = offline
	n.mu.Unlock()
}

// Offline reports whether the node is unreachable.
func (n *Node) Offline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.offline
}

// FailNext makes the next operation of kind op fail with err. Calls queue up.
func (n *Node) FailNext(op Op, err error) {
	n.mu.Lock()
	n.failNext[op] = append(n.failNext[op], err)
	n.mu.Unlock()
}

// Count returns how many operations of kind op reached the node.
func (n *Node) Count(op Op) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[op]
}

// Subscriptions returns the number of active subscriptions on path.
func (n *Node) Subscriptions(path datamodel.AttributePath) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.subs {
		if s.path == path {
			count++
		}
	}
	return count
}

// begin accounts for an operation and returns an injected failure, if any.
func (n *Node) begin(op Op) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts[op]++
	if errs := n.failNext[op]; len(errs) > 0 {
		n.failNext[op] = errs[1:]
		return errs[0]
	}
	return nil
}

// LightConfig describes a dimmable color light on endpoint 1.
type LightConfig struct {
	Level      uint8
	MinLevel   uint8
	MaxLevel   uint8
	On         bool
	Saturation uint8
}

// Light endpoint layout.
const LightEndpoint datamodel.EndpointID = 1

// NewLight creates a node with On/Off, Level Control and Color Control on
// endpoint 1.
func NewLight(id datamodel.NodeID, name string, cfg LightConfig) *Node {
	n := NewNode(id, name)
	ep := datamodel.NewEndpoint(LightEndpoint)
	oo := onoff.New(onoff.Config{EndpointID: LightEndpoint, InitialOnOff: cfg.On})
	ep.AddCluster(oo)
	ep.AddCluster(levelcontrol.New(levelcontrol.Config{
		EndpointID:   LightEndpoint,
		MinLevel:     cfg.MinLevel,
		MaxLevel:     cfg.MaxLevel,
		InitialLevel: cfg.Level,
		OnOff:        oo,
	}))
	ep.AddCluster(colorcontrol.New(colorcontrol.Config{
		EndpointID:        LightEndpoint,
		InitialSaturation: cfg.Saturation,
	}))
	n.AddEndpoint(ep)
	return n
}

// ThermostatEndpoint is where NewThermostat hosts its cluster.
const ThermostatEndpoint datamodel.EndpointID = 1

// NewThermostat creates a node with a Thermostat cluster on endpoint 1.
func NewThermostat(id datamodel.NodeID, name string, cfg thermostat.Config) *Node {
	n := NewNode(id, name)
	cfg.EndpointID = ThermostatEndpoint
	ep := datamodel.NewEndpoint(ThermostatEndpoint)
	ep.AddCluster(thermostat.New(cfg))
	n.AddEndpoint(ep)
	return n
}
