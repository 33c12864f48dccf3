package device

import (
	"context"
	"time"

	"github.com/rmaker/homectl/pkg/datamodel"
)

// Default subscription intervals.
const (
	DefaultMinInterval = 1 * time.Second
	DefaultMaxInterval = 60 * time.Second
)

// ReportFunc receives the TLV-encoded value of a subscribed attribute.
type ReportFunc func(path datamodel.AttributePath, data []byte)

// SubscribeParams configures an attribute subscription.
// Implementations that push every change may ignore MinInterval.
type SubscribeParams struct {
	MinInterval time.Duration
	MaxInterval time.Duration
}

// DefaultSubscribeParams returns the intervals used when none are given.
func DefaultSubscribeParams() SubscribeParams {
	return SubscribeParams{
		MinInterval: DefaultMinInterval,
		MaxInterval: DefaultMaxInterval,
	}
}

// Subscription is an active attribute subscription.
type Subscription interface {
	// ID uniquely identifies the subscription.
	ID() string

	// Path is the subscribed attribute.
	Path() datamodel.AttributePath

	// Cancel stops report delivery. It is safe to call more than once.
	Cancel() error

	// Done is closed once the subscription has ended.
	Done() <-chan struct{}
}

// Device is a resolved handle on a single node.
type Device interface {
	NodeID() datamodel.NodeID

	ReadAttribute(ctx context.Context, path datamodel.AttributePath) ([]byte, error)
	WriteAttribute(ctx context.Context, path datamodel.AttributePath, data []byte) error
	Invoke(ctx context.Context, path datamodel.CommandPath, fields []byte) ([]byte, error)
	Subscribe(ctx context.Context, path datamodel.AttributePath, params SubscribeParams, fn ReportFunc) (Subscription, error)
}

// Controller resolves node ids to devices.
type Controller interface {
	Device(ctx context.Context, node datamodel.NodeID) (Device, error)
}
