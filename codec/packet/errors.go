package packet

import "errors"

var (
	ErrFrameTooLarge  = errors.New("packet: frame exceeds maximum size")
	ErrFrameMalformed = errors.New("packet: malformed MQTT packet")
	ErrUnsupportedType = errors.New("packet: unsupported or unimplemented packet type")
)
