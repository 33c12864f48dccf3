package device

import "errors"

// Errors returned by device framework implementations in addition to the
// interaction status errors defined in package datamodel.
var (
	// ErrNodeNotFound is returned when no device is known for a node id.
	ErrNodeNotFound = errors.New("device: node not found")

	// ErrTimeout is returned when the device does not answer in time.
	ErrTimeout = errors.New("device: request timeout")

	// ErrClosed is returned after the device or subscription was closed.
	ErrClosed = errors.New("device: closed")
)
