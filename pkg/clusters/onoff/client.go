package onoff

import (
	"context"

	"github.com/rmaker/homectl/pkg/clusters"
	"github.com/rmaker/homectl/pkg/device"
)

// Client issues On/Off reads and commands through a cluster handle.
type Client struct {
	cc *device.ClusterClient
}

// NewClient wraps a cluster handle bound to an On/Off instance.
func NewClient(cc *device.ClusterClient) *Client {
	return &Client{cc: cc}
}

// ReadOnOff reads the OnOff attribute.
func (c *Client) ReadOnOff(ctx context.Context) (bool, error) {
	data, err := c.cc.ReadAttribute(ctx, AttrOnOff)
	if err != nil {
		return false, err
	}
	return clusters.DecodeBool(data)
}

// On sends the On command.
func (c *Client) On(ctx context.Context) error {
	_, err := c.cc.Invoke(ctx, CmdOn, nil)
	return err
}

// Off sends the Off command.
func (c *Client) Off(ctx context.Context) error {
	_, err := c.cc.Invoke(ctx, CmdOff, nil)
	return err
}

// Toggle sends the Toggle command.
func (c *Client) Toggle(ctx context.Context) error {
	_, err := c.cc.Invoke(ctx, CmdToggle, nil)
	return err
}
