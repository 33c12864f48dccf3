package datamodel

import "errors"

// Interaction status errors. Cluster servers return these and device
// frameworks pass them through unchanged to callers.
var (
	// ErrEndpointNotFound indicates the requested endpoint does not exist.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrUnsupportedCluster indicates the endpoint does not host the cluster.
	ErrUnsupportedCluster = errors.New("unsupported cluster")

	// ErrUnsupportedAttribute indicates the attribute does not exist.
	ErrUnsupportedAttribute = errors.New("unsupported attribute")

	// ErrUnsupportedWrite indicates the attribute is not writable.
	ErrUnsupportedWrite = errors.New("unsupported write")

	// ErrUnsupportedCommand indicates the command does not exist.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrConstraintError indicates a value outside the allowed range.
	ErrConstraintError = errors.New("constraint error")

	// ErrInvalidCommand indicates malformed command fields.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrFailure is a generic device-side failure.
	ErrFailure = errors.New("failure")
)
