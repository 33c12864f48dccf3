package datamodel

import "sync"

// Endpoint is an in-memory collection of server clusters.
type Endpoint struct {
	id EndpointID

	mu       sync.RWMutex
	clusters map[ClusterID]Cluster
	order    []ClusterID
}

// NewEndpoint creates an empty endpoint.
func NewEndpoint(id EndpointID) *Endpoint {
	return &Endpoint{id: id, clusters: make(map[ClusterID]Cluster)}
}

// ID returns the endpoint ID.
func (e *Endpoint) ID() EndpointID { return e.id }

// AddCluster registers c, replacing any cluster with the same ID.
func (e *Endpoint) AddCluster(c Cluster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.clusters[c.ID()]; !ok {
		e.order = append(e.order, c.ID())
	}
	e.clusters[c.ID()] = c
}

// Cluster returns the cluster with the given ID, or nil.
func (e *Endpoint) Cluster(id ClusterID) Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clusters[id]
}

// ClusterIDs returns the hosted cluster IDs in registration order.
func (e *Endpoint) ClusterIDs() []ClusterID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]ClusterID(nil), e.order...)
}

// Node is an in-memory collection of endpoints.
type Node struct {
	mu        sync.RWMutex
	endpoints map[EndpointID]*Endpoint
	order     []EndpointID
}

// NewNode creates a node without endpoints.
func NewNode() *Node {
	return &Node{endpoints: make(map[EndpointID]*Endpoint)}
}

// AddEndpoint registers ep.
func (n *Node) AddEndpoint(ep *Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.endpoints[ep.ID()]; !ok {
		n.order = append(n.order, ep.ID())
	}
	n.endpoints[ep.ID()] = ep
}

// Endpoint returns the endpoint with the given ID, or nil.
func (n *Node) Endpoint(id EndpointID) *Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.endpoints[id]
}

// Endpoints returns all endpoints in registration order.
func (n *Node) Endpoints() []*Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Endpoint, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.endpoints[id])
	}
	return out
}

// Lookup returns the cluster at path.
func (n *Node) Lookup(path ClusterPath) (Cluster, error) {
	ep := n.Endpoint(path.Endpoint)
	if ep == nil {
		return nil, ErrEndpointNotFound
	}
	c := ep.Cluster(path.Cluster)
	if c == nil {
		return nil, ErrUnsupportedCluster
	}
	return c, nil
}
