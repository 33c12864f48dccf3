// Package colorcontrol implements the saturation subset of the Color Control
// Cluster (0x0300).
package colorcontrol

import (
	"context"
	"sync"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
	"github.com/rmaker/homectl/pkg/tlv"
)

// Cluster constants.
const (
	ClusterID datamodel.ClusterID = 0x0300
)

// Attribute IDs.
const (
	AttrCurrentHue        datamodel.AttributeID = 0x0000
	AttrCurrentSaturation datamodel.AttributeID = 0x0001
)

// Command IDs.
const (
	CmdMoveToSaturation datamodel.CommandID = 0x03
)

// MaxSaturation is the largest valid saturation.
const MaxSaturation uint8 = 254

// MoveToSaturationRequest is the payload of MoveToSaturation.
type MoveToSaturationRequest struct {
	Saturation      uint8
	TransitionTime  uint16
	OptionsMask     uint8
	OptionsOverride uint8
}

// MarshalTLV encodes the request as a structure with context tags 0-3.
func (r *MoveToSaturationRequest) MarshalTLV(w *tlv.Writer) error {
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return err
	}
	fields := []uint64{uint64(r.Saturation), uint64(r.TransitionTime), uint64(r.OptionsMask), uint64(r.OptionsOverride)}
	for i, v := range fields {
		if err := w.PutUint(tlv.ContextTag(uint8(i)), v); err != nil {
			return err
		}
	}
	return w.EndContainer()
}

// UnmarshalTLV decodes the request. Unknown fields are skipped.
func (r *MoveToSaturationRequest) UnmarshalTLV(rd *tlv.Reader) error {
	if err := rd.Next(); err != nil {
		return err
	}
	if err := rd.EnterContainer(); err != nil {
		return err
	}
	for {
		if err := rd.Next(); err != nil {
			return err
		}
		if rd.IsEndOfContainer() {
			break
		}
		if !rd.Tag().IsContext() || rd.Tag().TagNumber() > 3 {
			if err := rd.Skip(); err != nil {
				return err
			}
			continue
		}
		v, err := rd.Uint()
		if err != nil {
			return err
		}
		switch rd.Tag().TagNumber() {
		case 0:
			r.Saturation = uint8(v)
		case 1:
			r.TransitionTime = uint16(v)
		case 2:
			r.OptionsMask = uint8(v)
		case 3:
			r.OptionsOverride = uint8(v)
		}
	}
	return rd.ExitContainer()
}

// Config provides dependencies for the Color Control cluster.
type Config struct {
	EndpointID        datamodel.EndpointID
	InitialSaturation uint8
}

// Cluster is the server side of the Color Control cluster.
type Cluster struct {
	*datamodel.ClusterBase

	mu         sync.RWMutex
	hue        uint8
	saturation uint8
}

// New creates a new Color Control cluster.
func New(cfg Config) *Cluster {
	sat := cfg.InitialSaturation
	if sat > MaxSaturation {
		sat = MaxSaturation
	}
	return &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID),
		saturation:  sat,
	}
}

// Saturation returns the current saturation.
func (c *Cluster) Saturation() uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saturation
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(ctx context.Context, attr datamodel.AttributeID, w *tlv.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch attr {
	case AttrCurrentHue:
		return w.PutUint(tlv.Anonymous(), uint64(c.hue))
	case AttrCurrentSaturation:
		return w.PutUint(tlv.Anonymous(), uint64(c.saturation))
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

// WriteAttribute implements datamodel.Cluster. Color attributes are read-only.
func (c *Cluster) WriteAttribute(ctx context.Context, attr datamodel.AttributeID, r *tlv.Reader) error {
	switch attr {
	case AttrCurrentHue, AttrCurrentSaturation:
		return datamodel.ErrUnsupportedWrite
	default:
		return datamodel.ErrUnsupportedAttribute
	}
}

// InvokeCommand implements datamodel.Cluster.
func (c *Cluster) InvokeCommand(ctx context.Context, cmd datamodel.CommandID, r *tlv.Reader) error {
	if cmd != CmdMoveToSaturation {
		return datamodel.ErrUnsupportedCommand
	}
	if r == nil {
		return datamodel.ErrInvalidCommand
	}
	var req MoveToSaturationRequest
	if err := req.UnmarshalTLV(r); err != nil {
		return datamodel.ErrInvalidCommand
	}
	if req.Saturation > MaxSaturation {
		return datamodel.ErrConstraintError
	}

	c.mu.Lock()
	changed := c.saturation != req.Saturation
	c.saturation = req.Saturation
	c.mu.Unlock()
	if changed {
		c.NotifyChanged(AttrCurrentSaturation)
	}
	return nil
}

// Client issues Color Control reads and commands through a cluster handle.
type Client struct {
	cc *device.ClusterClient
}

// NewClient wraps a cluster handle bound to a Color Control instance.
func NewClient(cc *device.ClusterClient) *Client {
	return &Client{cc: cc}
}

// ReadCurrentSaturation reads CurrentSaturation.
func (c *Client) ReadCurrentSaturation(ctx context.Context) (uint8, error) {
	data, err := c.cc.ReadAttribute(ctx, AttrCurrentSaturation)
	if err != nil {
		return 0, err
	}
	v, err := clusters.DecodeUint(data)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

// MoveToSaturation sends MoveToSaturation.
func (c *Client) MoveToSaturation(ctx context.Context, req MoveToSaturationRequest) error {
	_, err := c.cc.Invoke(ctx, CmdMoveToSaturation, &req)
	return err
}
