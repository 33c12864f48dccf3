// Package basic implements the Basic Information Cluster (0x0028).
//
// Only the identification attributes a controller shows in its node list
// are hosted: vendor, product, the user-assigned NodeLabel and Reachable.
package basic

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0028
)

// Attribute IDs.
const (
	AttrVendorName  datamodel.AttributeID = 0x0001
	AttrVendorID    datamodel.AttributeID = 0x0002
	AttrProductName datamodel.AttributeID = 0x0003
	AttrProductID   datamodel.AttributeID = 0x0004
	AttrNodeLabel   datamodel.AttributeID = 0x0005
	AttrReachable   datamodel.AttributeID = 0x0011
)

// MaxNodeLabelLength is the NodeLabel limit in characters.
const MaxNodeLabelLength = 32

// Config provides dependencies for the Basic Information cluster.
type Config struct {
	VendorName  string
	VendorID    uint16
	ProductName string
	ProductID   uint16
	NodeLabel   string
}

// Cluster is the server side of the Basic Information cluster. It always
// lives on endpoint 0.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu        sync.RWMutex
	nodeLabel string
	reachable bool
}

// New creates a new Basic Information cluster.
func New(cfg Config) *Cluster {
	return &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, 0),
		config:      cfg,
		nodeLabel:   cfg.NodeLabel,
		reachable:   true,
	}
}

// NodeLabel returns the user-assigned label.
func (c *Cluster) NodeLabel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeLabel
}

// SetReachable updates Reachable.
func (c *Cluster) SetReachable(reachable bool) {
	c.mu.Lock()
	changed := c.reachable != reachable
	c.reachable = reachable
	c.mu.Unlock()
	if changed {
		c.NotifyChanged(AttrReachable)
	}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID, w *tlv.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch attr {
	case AttrVendorName:
		return w.PutString(tlv.Anonymous(), c.config.VendorName)
	case AttrVendorID:
		return w.PutUint(tlv.Anonymous(), uint64(c.config.VendorID))
	case AttrProductName:
		return w.PutString(tlv.Anonymous(), c.config.ProductName)
	case AttrProductID:
		return w.PutUint(tlv.Anonymous(), uint64(c.config.ProductID))
	case AttrNodeLabel:
		return w.PutString(tlv.Anonymous(), c.nodeLabel)
	case AttrReachable:
		return w.PutBool(tlv.Anonymous(), c.reachable)
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

// WriteAttribute implements datamodel.Cluster. Only NodeLabel is writable.
func (c *Cluster) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, r *tlv.Reader) error {
	switch attr {
	case AttrNodeLabel:
		return c.writeNodeLabel(r)
	case AttrVendorName, AttrVendorID, AttrProductName, AttrProductID, AttrReachable:
		return datamodel.ErrUnsupportedWrite
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

func (c *Cluster) writeNodeLabel(r *tlv.Reader) error {
	if err := r.Next(); err != nil {
		return err
	}
	label, err := r.String()
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(label) > MaxNodeLabelLength {
		return datamodel.ErrConstraintError
	}

	c.mu.Lock()
	c.nodeLabel = label
	c.mu.Unlock()

	c.NotifyChanged(AttrNodeLabel)
	return nil
}

// InvokeCommand implements datamodel.Cluster.
// Basic Information has no commands.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, r *tlv.Reader) error {
	return datamodel.ErrUnsupportedCommand
}

// Client reads Basic Information attributes through a device handle.
type Client struct {
	cc *device.ClusterClient
}

// NewClient creates a client for the Basic Information cluster of dev.
func NewClient(dev device.Device) *Client {
	return &Client{cc: device.NewClusterClient(dev, datamodel.ClusterPath{Endpoint: 0, Cluster: ClusterID})}
}

// ReadNodeLabel reads NodeLabel.
func (c *Client) ReadNodeLabel(ctx context.Context) (string, error) {
	return c.readString(ctx, AttrNodeLabel)
}

// ReadProductName reads ProductName.
func (c *Client) ReadProductName(ctx context.Context) (string, error) {
	return c.readString(ctx, AttrProductName)
}

// WriteNodeLabel writes NodeLabel.
func (c *Client) WriteNodeLabel(ctx context.Context, label string) error {
	data, err := clusters.EncodeString(label)
	if err != nil {
		return err
	}
	return c.cc.WriteAttribute(ctx, AttrNodeLabel, data)
}

func (c *Client) readString(ctx context.Context, attr datamodel.AttributeID) (string, error) {
	data, err := c.cc.ReadAttribute(ctx, attr)
	if err != nil {
		return "", err
	}
	return clusters.DecodeString(data)
}
