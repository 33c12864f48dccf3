package control

import "errors"

var (
	// ErrUnknownOption is returned when a dropdown option has no device value.
	ErrUnknownOption = errors.New("control: unknown option")

	// ErrSuperseded is returned when a newer subscription replaced the one
	// being set up.
	ErrSuperseded = errors.New("control: subscription superseded")

	// ErrClosed is returned after the manager has been closed.
	ErrClosed = errors.New("control: closed")
)
