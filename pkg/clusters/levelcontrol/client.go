package levelcontrol

import (
	"context"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/device"
)

// Client issues Level Control reads and commands through a cluster handle.
type Client struct {
	cc *device.ClusterClient
}

// NewClient wraps a cluster handle bound to a Level Control instance.
func NewClient(cc *device.ClusterClient) *Client {
	return &Client{cc: cc}
}

// ReadCurrentLevel reads CurrentLevel. A null level yields clusters.ErrNullValue.
func (c *Client) ReadCurrentLevel(ctx context.Context) (uint8, error) {
	return c.readLevel(ctx, AttrCurrentLevel)
}

// ReadMinLevel reads MinLevel.
func (c *Client) ReadMinLevel(ctx context.Context) (uint8, error) {
	return c.readLevel(ctx, AttrMinLevel)
}

// ReadMaxLevel reads MaxLevel.
func (c *Client) ReadMaxLevel(ctx context.Context) (uint8, error) {
	return c.readLevel(ctx, AttrMaxLevel)
}

func (c *Client) readLevel(ctx context.Context, attr datamodel.AttributeID) (uint8, error) {
	data, err := c.cc.ReadAttribute(ctx, attr)
	if err != nil {
		return 0, err
	}
	v, err := clusters.DecodeUint(data)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, clusters.ErrInvalidResponse
	}
	return uint8(v), nil
}

// MoveToLevel sends MoveToLevel without touching the on/off state.
func (c *Client) MoveToLevel(ctx context.Context, req MoveToLevelRequest) error {
	_, err := c.cc.Invoke(ctx, CmdMoveToLevel, &req)
	return err
}

// MoveToLevelWithOnOff sends MoveToLevelWithOnOff, which also switches the
// light on for any level above the minimum.
func (c *Client) MoveToLevelWithOnOff(ctx context.Context, req MoveToLevelRequest) error {
	_, err := c.cc.Invoke(ctx, CmdMoveToLevelWithOnOff, &req)
	return err
}
