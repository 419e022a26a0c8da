package qos

import "errors"

var (
	ErrInvalidQoS     = errors.New("invalid QoS level")
	ErrUnknownAck     = errors.New("ack does not match any pending delivery")
	ErrMessageExpired = errors.New("message has expired")
	ErrTrackerClosed  = errors.New("ack tracker is closed")
)
