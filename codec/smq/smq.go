// Package smq implements the broker's native length-prefixed wire
// framing (spec §4.2 "SMQ native frame"), extended with the fixed
// id/qos fields the Message data model requires but the frame diagram
// leaves out: id and qos ride immediately after the type byte rather
// than as synthetic headers, so a header-free MESSAGE still round-trips
// its id.
//
// Layout (all integers big-endian, unsigned):
//
//	u8   type
//	u8   qos
//	u128 id                        (16 raw bytes, producer-assigned)
//	u16  destination_length        destination_bytes (UTF-8)
//	u16  header_count
//	  for each header: u8 key_length key_bytes  u16 value_length value_bytes
//	u32  body_length               body_bytes
//
// A zero destination_length is illegal for a MESSAGE frame. body_length
// of 0 means an empty body, distinct from no body at all. Decode reads
// at most one frame per call and is stateless beyond its input slice.
package smq

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/sptk/smq/encoding"
	"github.com/sptk/smq/types/message"
)

// fixedPrefixLen is type(1) + qos(1) + id(16) + destination_length(2).
const fixedPrefixLen = 1 + 1 + 16 + 2

// Framer implements framer.Framer for the native SMQ wire format.
type Framer struct {
	maxBytes uint32
}

// New creates an SMQ Framer bounding a decoded frame to maxBytes.
func New(maxBytes uint32) *Framer {
	return &Framer{maxBytes: maxBytes}
}

// Encode appends msg's SMQ wire representation to dst.
func (f *Framer) Encode(dst []byte, msg *message.Message) ([]byte, error) {
	if msg.Type == message.Publish && msg.Destination == "" {
		return nil, ErrEmptyDestination
	}
	if len(msg.Destination) > 0xFFFF || len(msg.Headers) > 0xFFFF {
		return nil, ErrFrameTooLarge
	}

	size := fixedPrefixLen + len(msg.Destination) + 2
	for _, h := range msg.Headers {
		if len(h.Key) > 0xFF || len(h.Value) > 0xFFFF {
			return nil, ErrFrameTooLarge
		}
		size += 1 + len(h.Key) + 2 + len(h.Value)
	}
	size += 4 + len(msg.Body)
	if f.maxBytes > 0 && uint32(size) > f.maxBytes {
		return nil, ErrFrameTooLarge
	}

	dst = append(dst, byte(msg.Type), byte(msg.QoS))
	dst = append(dst, msg.ID[:]...)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(msg.Destination)))
	dst = append(dst, msg.Destination...)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(msg.Headers)))
	for _, h := range msg.Headers {
		dst = append(dst, byte(len(h.Key)))
		dst = append(dst, h.Key...)
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(h.Value)))
		dst = append(dst, h.Value...)
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(msg.Body)))
	dst = append(dst, msg.Body...)
	return dst, nil
}

// Decode parses one SMQ frame from the front of buf.
func (f *Framer) Decode(buf []byte) (*message.Message, int, error) {
	if len(buf) < fixedPrefixLen {
		return nil, 0, nil
	}

	off := 0
	typ := message.Type(buf[off])
	off++
	qos := encoding.QoS(buf[off])
	off++

	id, err := uuid.FromBytes(buf[off : off+16])
	if err != nil {
		return nil, 0, ErrFrameMalformed
	}
	off += 16

	destLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	if destLen == 0 && typ == message.Publish {
		return nil, 0, ErrEmptyDestination
	}
	if len(buf) < off+destLen+2 {
		return nil, 0, nil
	}
	dest := string(buf[off : off+destLen])
	off += destLen

	headerCount := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2

	headers := make(message.Headers, 0, headerCount)
	for i := 0; i < headerCount; i++ {
		if len(buf) < off+1 {
			return nil, 0, nil
		}
		keyLen := int(buf[off])
		off++
		if len(buf) < off+keyLen+2 {
			return nil, 0, nil
		}
		key := string(buf[off : off+keyLen])
		off += keyLen
		valLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		if len(buf) < off+valLen {
			return nil, 0, nil
		}
		val := string(buf[off : off+valLen])
		off += valLen
		headers = append(headers, message.Header{Key: key, Value: val})
	}

	if len(buf) < off+4 {
		return nil, 0, nil
	}
	bodyLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4

	if f.maxBytes > 0 && uint64(off)+uint64(bodyLen) > uint64(f.maxBytes) {
		return nil, 0, ErrFrameTooLarge
	}
	if uint64(len(buf)) < uint64(off)+uint64(bodyLen) {
		return nil, 0, nil
	}

	body := make([]byte, bodyLen)
	copy(body, buf[off:off+int(bodyLen)])
	off += int(bodyLen)

	return &message.Message{
		Type:        typ,
		ID:          id,
		Destination: dest,
		QoS:         qos,
		Headers:     headers,
		Body:        body,
	}, off, nil
}
