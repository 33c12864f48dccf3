package device

import (
	"context"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
)

// ClusterClient is a device handle bound to one cluster instance. It is the
// per-cluster controller handle the control layer works with.
type ClusterClient struct {
	dev  Device
	path datamodel.ClusterPath
}

// NewClusterClient binds dev to the cluster at path.
func NewClusterClient(dev Device, path datamodel.ClusterPath) *ClusterClient {
	return &ClusterClient{dev: dev, path: path}
}

// Device returns the underlying device.
func (c *ClusterClient) Device() Device { return c.dev }

// Path returns the bound cluster path.
func (c *ClusterClient) Path() datamodel.ClusterPath { return c.path }

// ReadAttribute reads the raw TLV value of attr.
func (c *ClusterClient) ReadAttribute(ctx context.Context, attr datamodel.AttributeID) ([]byte, error) {
	return c.dev.ReadAttribute(ctx, c.path.Attribute(attr))
}

// ReadNumber reads attr and decodes it as an integer.
func (c *ClusterClient) ReadNumber(ctx context.Context, attr datamodel.AttributeID) (int64, error) {
	data, err := c.ReadAttribute(ctx, attr)
	if err != nil {
		return 0, err
	}
	return clusters.DecodeNumber(data)
}

// WriteAttribute writes a raw TLV value to attr.
func (c *ClusterClient) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, data []byte) error {
	return c.dev.WriteAttribute(ctx, c.path.Attribute(attr), data)
}

// Invoke encodes req and invokes cmd. It returns the raw response fields.
func (c *ClusterClient) Invoke(ctx context.Context, cmd datamodel.CommandID, req clusters.TLVMarshaler) ([]byte, error) {
	fields, err := clusters.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	return c.dev.Invoke(ctx, c.path.Command(cmd), fields)
}

// Subscribe subscribes to attr on the bound cluster.
func (c *ClusterClient) Subscribe(ctx context.Context, attr datamodel.AttributeID, params SubscribeParams, fn ReportFunc) (Subscription, error) {
	return c.dev.Subscribe(ctx, c.path.Attribute(attr), params, fn)
}
