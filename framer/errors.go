package framer

import "errors"

var (
	// ErrUnknownProtocol is returned by New for an unrecognized protocol name.
	ErrUnknownProtocol = errors.New("framer: unknown protocol")

	// ErrFrameTooLarge is returned when a frame's declared or encoded size
	// exceeds the configured bound (spec default 16 MiB).
	ErrFrameTooLarge = errors.New("framer: frame exceeds maximum size")

	// ErrFrameMalformed is returned for a structurally invalid frame.
	ErrFrameMalformed = errors.New("framer: malformed frame")

	// ErrEmptyDestination is returned encoding/decoding a MESSAGE frame
	// whose destination is empty, which the wire format forbids.
	ErrEmptyDestination = errors.New("framer: empty destination in message frame")
)
