package datamodel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rmaker/homectl/pkg/tlv"
)

// DataVersion is a per-cluster counter bumped on every attribute change.
type DataVersion uint32

// AttributeChangeListener is notified when an attribute value changes.
type AttributeChangeListener func(path AttributePath)

// Cluster is a server-side cluster instance hosted by a simulated node.
type Cluster interface {
	ID() ClusterID
	EndpointID() EndpointID
	DataVersion() DataVersion

	// ReadAttribute encodes the current value of attr into w.
	ReadAttribute(ctx context.Context, attr AttributeID, w *tlv.Writer) error

	// WriteAttribute decodes a new value for attr from r.
	WriteAttribute(ctx context.Context, attr AttributeID, r *tlv.Reader) error

	// InvokeCommand executes cmd with fields read from r. r is nil for
	// commands sent without fields.
	InvokeCommand(ctx context.Context, cmd CommandID, r *tlv.Reader) error

	// SetChangeListener registers fn to be called after attribute changes.
	SetChangeListener(fn AttributeChangeListener)
}

// ClusterBase provides the bookkeeping shared by cluster implementations.
// Embed it and call NotifyChanged after mutating an attribute.
type ClusterBase struct {
	id          ClusterID
	endpointID  EndpointID
	dataVersion atomic.Uint32

	mu       sync.RWMutex
	listener AttributeChangeListener
}

// NewClusterBase creates a cluster base for cluster id on endpoint.
func NewClusterBase(id ClusterID, endpoint EndpointID) *ClusterBase {
	return &ClusterBase{id: id, endpointID: endpoint}
}

// ID returns the cluster ID.
func (c *ClusterBase) ID() ClusterID { return c.id }

// EndpointID returns the endpoint this cluster belongs to.
func (c *ClusterBase) EndpointID() EndpointID { return c.endpointID }

// DataVersion returns the current data version.
func (c *ClusterBase) DataVersion() DataVersion {
	return DataVersion(c.dataVersion.Load())
}

// Path returns the cluster path.
func (c *ClusterBase) Path() ClusterPath {
	return ClusterPath{Endpoint: c.endpointID, Cluster: c.id}
}

// SetChangeListener registers fn to be called after attribute changes.
func (c *ClusterBase) SetChangeListener(fn AttributeChangeListener) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// NotifyChanged bumps the data version and informs the listener.
// Callers must not hold their own locks.
func (c *ClusterBase) NotifyChanged(attr AttributeID) {
	c.dataVersion.Add(1)
	c.mu.RLock()
	fn := c.listener
	c.mu.RUnlock()
	if fn != nil {
		fn(c.Path().Attribute(attr))
	}
}
