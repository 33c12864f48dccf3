// Package descriptor implements the Descriptor Cluster (0x001D).
//
// The Descriptor cluster lists the server clusters of an endpoint and, on
// the root endpoint, the other endpoints of the node (PartsList). Controllers
// read it to learn which endpoint serves a cluster.
package descriptor

import (
	"context"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x001D
)

// Attribute IDs.
const (
	AttrServerList datamodel.AttributeID = 0x0001
	AttrPartsList  datamodel.AttributeID = 0x0003
)

// RootEndpoint hosts the node-wide PartsList.
const RootEndpoint datamodel.EndpointID = 0

// Config provides dependencies for the Descriptor cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// Node provides access to endpoint/cluster information.
	Node *datamodel.Node
}

// Cluster is the server side of the Descriptor cluster.
type Cluster struct {
	*datamodel.ClusterBase
	config Config
}

// New creates a new Descriptor cluster.
func New(cfg Config) *Cluster {
	return &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID),
		config:      cfg,
	}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID, w *tlv.Writer) error {
	switch attr {
	case AttrServerList:
		return c.readServerList(w)
	case AttrPartsList:
		return c.readPartsList(w)
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

func (c *Cluster) readServerList(w *tlv.Writer) error {
	ep := c.config.Node.Endpoint(c.EndpointID())
	if err := w.StartArray(tlv.Anonymous()); err != nil {
		return err
	}
	if ep != nil {
		for _, id := range ep.ClusterIDs() {
			if err := w.PutUint(tlv.Anonymous(), uint64(id)); err != nil {
				return err
			}
		}
	}
	return w.EndContainer()
}

// readPartsList lists every other endpoint from the root, and nothing
// elsewhere. Nested composition is not modelled.
func (c *Cluster) readPartsList(w *tlv.Writer) error {
	if err := w.StartArray(tlv.Anonymous()); err != nil {
		return err
	}
	if c.EndpointID() == RootEndpoint {
		for _, ep := range c.config.Node.Endpoints() {
			if ep.ID() == RootEndpoint {
				continue
			}
			if err := w.PutUint(tlv.Anonymous(), uint64(ep.ID())); err != nil {
				return err
			}
		}
	}
	return w.EndContainer()
}

// WriteAttribute implements datamodel.Cluster.
// Descriptor cluster has no writable attributes.
func (c *Cluster) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, r *tlv.Reader) error {
	return datamodel.ErrUnsupportedWrite
}

// InvokeCommand implements datamodel.Cluster.
// Descriptor cluster has no commands.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, r *tlv.Reader) error {
	return datamodel.ErrUnsupportedCommand
}

// Client reads Descriptor attributes through a device handle.
type Client struct {
	dev device.Device
}

// NewClient creates a client for the Descriptor clusters of dev.
func NewClient(dev device.Device) *Client {
	return &Client{dev: dev}
}

// ReadPartsList returns the non-root endpoints of the node.
func (c *Client) ReadPartsList(ctx context.Context) ([]datamodel.EndpointID, error) {
	path := datamodel.AttributePath{Endpoint: RootEndpoint, Cluster: ClusterID, Attribute: AttrPartsList}
	data, err := c.dev.ReadAttribute(ctx, path)
	if err != nil {
		return nil, err
	}
	ids, err := clusters.DecodeUintList(data)
	if err != nil {
		return nil, err
	}
	out := make([]datamodel.EndpointID, len(ids))
	for i, v := range ids {
		out[i] = datamodel.EndpointID(v)
	}
	return out, nil
}

// ReadServerList returns the server clusters of endpoint ep.
func (c *Client) ReadServerList(ctx context.Context, ep datamodel.EndpointID) ([]datamodel.ClusterID, error) {
	path := datamodel.AttributePath{Endpoint: ep, Cluster: ClusterID, Attribute: AttrServerList}
	data, err := c.dev.ReadAttribute(ctx, path)
	if err != nil {
		return nil, err
	}
	ids, err := clusters.DecodeUintList(data)
	if err != nil {
		return nil, err
	}
	out := make([]datamodel.ClusterID, len(ids))
	for i, v := range ids {
		out[i] = datamodel.ClusterID(v)
	}
	return out, nil
}

// ClusterMap walks the node and returns, for every server cluster, the
// first endpoint that hosts it. The root endpoint is not searched.
func (c *Client) ClusterMap(ctx context.Context) (map[datamodel.ClusterID]datamodel.EndpointID, error) {
	parts, err := c.ReadPartsList(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[datamodel.ClusterID]datamodel.EndpointID)
	for _, ep := range parts {
		ids, err := c.ReadServerList(ctx, ep)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := out[id]; !ok {
				out[id] = ep
			}
		}
	}
	return out, nil
}
