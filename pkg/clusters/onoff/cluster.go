// Package onoff implements the On/Off Cluster (0x0006).
//
// The On/Off cluster controls the on/off state of a light or outlet. Level
// Control couples to it through MoveToLevelWithOnOff.
package onoff

import (
	"context"
	"sync"

	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0006
)

// Attribute IDs.
const (
	AttrOnOff datamodel.AttributeID = 0x0000
)

// Command IDs.
const (
	CmdOff    datamodel.CommandID = 0x00
	CmdOn     datamodel.CommandID = 0x01
	CmdToggle datamodel.CommandID = 0x02
)

// StateChangeCallback is called when the on/off state changes.
type StateChangeCallback func(endpoint datamodel.EndpointID, newState bool)

// Config provides dependencies for the On/Off cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// InitialOnOff is the state at creation.
	InitialOnOff bool

	// OnStateChange callback when state changes (optional).
	OnStateChange StateChangeCallback
}

// Cluster is the server side of the On/Off cluster.
type Cluster struct {
	*datamodel.ClusterBase
	config Config

	mu    sync.RWMutex
	onOff bool
}

// New creates a new On/Off cluster.
func New(cfg Config) *Cluster {
	return &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID),
		config:      cfg,
		onOff:       cfg.InitialOnOff,
	}
}

// OnOff returns the current state.
func (c *Cluster) OnOff() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onOff
}

// SetOnOff changes the state and reports the change if there is one.
func (c *Cluster) SetOnOff(on bool) {
	c.mu.Lock()
	changed := c.onOff != on
	c.onOff = on
	c.mu.Unlock()

	if !changed {
		return
	}
	c.NotifyChanged(AttrOnOff)
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(c.EndpointID(), on)
	}
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID, w *tlv.Writer) error {
	switch attr {
	case AttrOnOff:
		return w.PutBool(tlv.Anonymous(), c.OnOff())
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

// WriteAttribute implements datamodel.Cluster. OnOff is read-only.
func (c *Cluster) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, r *tlv.Reader) error {
	if attr == AttrOnOff {
		return datamodel.ErrUnsupportedWrite
	}
	return datamodel.ErrUnsupportedAttribute
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, r *tlv.Reader) error {
	switch cmd {
	case CmdOff:
		c.SetOnOff(false)
	case CmdOn:
		c.SetOnOff(true)
	case CmdToggle:
		c.mu.Lock()
		next := !c.onOff
		c.mu.Unlock()
		c.SetOnOff(next)
	default:
		return datamodel.ErrUnsupportedCommand
	}
	return nil
}
