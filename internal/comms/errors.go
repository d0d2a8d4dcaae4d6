package comms

import "errors"

// Transport errors. These are the conditions a caller must explicitly
// handle; expected outcomes like timeouts and not-found lookups are
// returned as empty results instead.
var (
	// ErrChannelFull indicates the recipient's queue is at capacity.
	// Send never silently drops a message.
	ErrChannelFull = errors.New("channel full")
	// ErrChannelClosed indicates the channel no longer accepts traffic.
	ErrChannelClosed = errors.New("channel closed")
	// ErrInvalidMessage indicates a malformed message (missing type or sender).
	ErrInvalidMessage = errors.New("invalid message")
	// ErrUnauthorized indicates the sender may not use this channel.
	ErrUnauthorized = errors.New("unauthorized channel access")
	// ErrNoRoute indicates the middleware found no channel for a message.
	ErrNoRoute = errors.New("no route for message")
	// ErrDataNotFound indicates a data channel lookup missed.
	ErrDataNotFound = errors.New("data not found")
)
