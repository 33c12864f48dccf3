package thermostat

import (
	"context"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/device"
)

// Client issues Thermostat reads and writes through a cluster handle.
type Client struct {
	cc *device.ClusterClient
}

// NewClient wraps a cluster handle bound to a Thermostat instance.
func NewClient(cc *device.ClusterClient) *Client {
	return &Client{cc: cc}
}

// ReadOccupiedCoolingSetpoint reads OccupiedCoolingSetpoint.
func (c *Client) ReadOccupiedCoolingSetpoint(ctx context.Context) (int16, error) {
	v, err := c.cc.ReadNumber(ctx, AttrOccupiedCoolingSetpoint)
	return int16(v), err
}

// WriteOccupiedCoolingSetpoint writes OccupiedCoolingSetpoint.
func (c *Client) WriteOccupiedCoolingSetpoint(ctx context.Context, v int16) error {
	return c.cc.WriteAttribute(ctx, AttrOccupiedCoolingSetpoint, clusters.EncodeInt(int64(v)))
}

// ReadSystemMode reads SystemMode.
func (c *Client) ReadSystemMode(ctx context.Context) (SystemMode, error) {
	v, err := c.cc.ReadNumber(ctx, AttrSystemMode)
	return SystemMode(v), err
}

// WriteSystemMode writes SystemMode.
func (c *Client) WriteSystemMode(ctx context.Context, m SystemMode) error {
	return c.cc.WriteAttribute(ctx, AttrSystemMode, clusters.EncodeUint(uint64(m)))
}

// WriteControlSequence writes ControlSequenceOfOperation.
func (c *Client) WriteControlSequence(ctx context.Context, s ControlSequence) error {
	return c.cc.WriteAttribute(ctx, AttrControlSequenceOfOperation, clusters.EncodeUint(uint64(s)))
}
