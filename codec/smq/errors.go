package smq

import "errors"

var (
	ErrFrameTooLarge    = errors.New("smq: frame exceeds maximum size")
	ErrFrameMalformed   = errors.New("smq: malformed frame")
	ErrEmptyDestination = errors.New("smq: empty destination in message frame")
)
