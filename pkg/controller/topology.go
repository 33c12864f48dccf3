package controller

import (
	"context"
	"sort"
	"sync"

	"github.com/rmaker/homectl/pkg/clusters/basic"
	"github.com/rmaker/homectl/pkg/clusters/descriptor"
	"github.com/rmaker/homectl/pkg/datamodel"
)

// NodeInfo describes one node of a group.
type NodeInfo struct {
	ID    datamodel.NodeID
	Name  string
	Group string

	// Endpoints maps each server cluster to the endpoint hosting it.
	Endpoints map[datamodel.ClusterID]datamodel.EndpointID
}

// Supports reports whether the node serves cluster.
func (n NodeInfo) Supports(cluster datamodel.ClusterID) bool {
	_, ok := n.Endpoints[cluster]
	return ok
}

type groupKey struct {
	group string
	node  datamodel.NodeID
}

// Topology is the group, node and endpoint layout. Safe for concurrent use.
type Topology struct {
	mu    sync.RWMutex
	nodes map[groupKey]NodeInfo
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{nodes: make(map[groupKey]NodeInfo)}
}

// Add stores info, replacing an existing entry for the same group and node.
func (t *Topology) Add(info NodeInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[groupKey{info.Group, info.ID}] = info
}

// Remove drops a node from a group.
func (t *Topology) Remove(group string, node datamodel.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, groupKey{group, node})
}

// Node looks up a node within a group.
func (t *Topology) Node(group string, node datamodel.NodeID) (NodeInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.nodes[groupKey{group, node}]
	return info, ok
}

// Groups returns the group names in order.
func (t *Topology) Groups() []string {
	t.mu.RLock()
	seen := make(map[string]struct{})
	for k := range t.nodes {
		seen[k.group] = struct{}{}
	}
	t.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Nodes returns the nodes of group ordered by id.
func (t *Topology) Nodes(group string) []NodeInfo {
	t.mu.RLock()
	var out []NodeInfo
	for k, info := range t.nodes {
		if k.group == group {
			out = append(out, info)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Discover walks the descriptor tree of node and records it in group. The
// node label becomes the name when name is empty.
func (c *Controller) Discover(ctx context.Context, group string, node datamodel.NodeID, name string) (NodeInfo, error) {
	dev, err := c.Device(ctx, node)
	if err != nil {
		return NodeInfo{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	defer cancel()

	eps, err := descriptor.NewClient(dev).ClusterMap(ctx)
	if err != nil {
		return NodeInfo{}, err
	}
	if name == "" {
		if label, err := basic.NewClient(dev).ReadNodeLabel(ctx); err == nil {
			name = label
		} else {
			c.log.Debugf("node label of %s: %v", node, err)
		}
	}

	info := NodeInfo{ID: node, Name: name, Group: group, Endpoints: eps}
	c.topo.Add(info)
	c.log.Infof("discovered %s %q in %s with %d clusters", node, name, group, len(eps))
	return info, nil
}
