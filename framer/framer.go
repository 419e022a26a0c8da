// Package framer defines the wire-framing contract every protocol
// implementation the broker speaks must satisfy, and a factory selecting
// between them per server configuration.
package framer

import (
	"fmt"

	"github.com/sptk/smq/codec/packet"
	"github.com/sptk/smq/codec/smq"
	"github.com/sptk/smq/types/message"
)

// Protocol selects the wire framing a Connection speaks.
type Protocol string

const (
	ProtocolSMQ  Protocol = "smq"
	ProtocolMQTT Protocol = "mqtt"
)

// MaxFrameBytes is the default bound on a single decoded frame.
const MaxFrameBytes = 16 * 1024 * 1024

// Framer is bidirectional: Encode appends the wire form of a Message;
// Decode reads at most one whole frame per call. On short input, Decode
// returns a nil Message and 0 consumed bytes without an error, leaving
// the caller's buffer untouched so it can append more and retry. A
// Framer is stateless beyond the buffer the caller passes it.
type Framer interface {
	Encode(dst []byte, msg *message.Message) ([]byte, error)
	Decode(buf []byte) (msg *message.Message, consumed int, err error)
}

// New constructs the Framer for the named protocol, bounding decoded
// frames to maxBytes (0 selects MaxFrameBytes).
func New(protocol Protocol, maxBytes uint32) (Framer, error) {
	if maxBytes == 0 {
		maxBytes = MaxFrameBytes
	}
	switch protocol {
	case ProtocolSMQ, "":
		return smq.New(maxBytes), nil
	case ProtocolMQTT:
		return packet.New(maxBytes), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocol)
	}
}
