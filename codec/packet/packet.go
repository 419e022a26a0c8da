// Package packet implements the MQTT 3.1.1-compatible Framer named in
// spec §4.2 and §6, wrapping the teacher's encoding package (fixed
// header, variable byte integer, and 3.1.1 packet decoders) behind the
// protocol-agnostic message.Message envelope every Framer produces.
//
// The Message envelope has no room for MQTT's richer per-packet-type
// shape (multiple SUBSCRIBE filters, CONNECT's will/username/password
// fields, SUBACK return codes), so this package folds those extras into
// Message.Headers and Message.Body using a small set of reserved header
// keys, documented per packet type below. Only the subset of MQTT 3.1.1
// named in spec §6 is handled: CONNECT, CONNACK, SUBSCRIBE, SUBACK,
// UNSUBSCRIBE, UNSUBACK, PUBLISH (QoS 0/1), PUBACK, PINGREQ, PINGRESP,
// DISCONNECT. QoS 2 and Will messages are out of scope (see
// spec §9 open questions).
package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/sptk/smq/encoding"
	"github.com/sptk/smq/types/message"
)

// Reserved header keys used to carry MQTT-specific fields that the
// protocol-agnostic Message envelope has no dedicated field for.
const (
	hdrUsername     = "username"
	hdrKeepAlive    = "keepalive"
	hdrCleanSession = "clean-session"
	hdrSessionPres  = "session-present"
	hdrDup          = "dup"
	hdrRetain       = "retain"
	hdrAckKind      = "ack-kind"
	hdrFilter       = "filter"
	hdrFilterQoS    = "filter-qos"
)

const (
	ackKindPuback   = "puback"
	ackKindSuback   = "suback"
	ackKindUnsuback = "unsuback"
)

// Framer implements framer.Framer for the MQTT 3.1.1 subset.
type Framer struct {
	maxBytes uint32
}

// New creates an MQTT Framer bounding a decoded packet to maxBytes.
func New(maxBytes uint32) *Framer {
	return &Framer{maxBytes: maxBytes}
}

func packetIDFromUUID(id uuid.UUID) uint16 {
	v := binary.BigEndian.Uint16(id[0:2])
	if v == 0 {
		v = 1
	}
	return v
}

func uuidFromPacketID(id uint16) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint16(u[0:2], id)
	return u
}

// Decode parses one MQTT 3.1.1 packet from the front of buf.
func (f *Framer) Decode(buf []byte) (*message.Message, int, error) {
	fh, headerLen, err := encoding.ParseFixedHeaderFromBytes311(buf)
	if err != nil {
		if err == encoding.ErrUnexpectedEOF {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
	}

	total := headerLen + int(fh.RemainingLength)
	if f.maxBytes > 0 && uint32(total) > f.maxBytes {
		return nil, 0, ErrFrameTooLarge
	}
	if len(buf) < total {
		return nil, 0, nil
	}
	body := buf[headerLen:total]

	msg, err := f.decodeBody(*fh, body)
	if err != nil {
		return nil, 0, err
	}
	return msg, total, nil
}

func (f *Framer) decodeBody(fh encoding.FixedHeader, data []byte) (*message.Message, error) {
	switch fh.Type {
	case encoding.CONNECT:
		pkt, err := encoding.ParseConnectPacket311(fh, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
		}
		headers := message.Headers{}
		headers = headers.Set(hdrUsername, pkt.Username)
		headers = headers.Set(hdrKeepAlive, strconv.Itoa(int(pkt.KeepAlive)))
		headers = headers.Set(hdrCleanSession, strconv.FormatBool(pkt.CleanSession))
		return &message.Message{
			Type:        message.Connect,
			ID:          uuid.New(),
			Destination: pkt.ClientID,
			Headers:     headers,
			Body:        pkt.Password,
		}, nil

	case encoding.PUBLISH:
		if fh.QoS > encoding.QoS1 {
			return nil, fmt.Errorf("%w: PUBLISH with %s", ErrUnsupportedType, fh.QoS)
		}
		pkt, err := encoding.ParsePublishPacket311(fh, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
		}
		id := uuid.New()
		if fh.QoS > encoding.QoS0 {
			id = uuidFromPacketID(pkt.PacketID)
		}
		var headers message.Headers
		if fh.DUP {
			headers = headers.Set(hdrDup, "true")
		}
		if fh.Retain {
			headers = headers.Set(hdrRetain, "true")
		}
		return &message.Message{
			Type:        message.Publish,
			ID:          id,
			Destination: pkt.TopicName,
			QoS:         fh.QoS,
			Headers:     headers,
			Body:        pkt.Payload,
			DUP:         fh.DUP,
		}, nil

	case encoding.SUBSCRIBE:
		pkt, err := encoding.ParseSubscribePacket311(fh, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
		}
		first := pkt.Subscriptions[0]
		var headers message.Headers
		for _, sub := range pkt.Subscriptions[1:] {
			headers = append(headers, message.Header{Key: hdrFilter, Value: sub.TopicFilter})
			headers = append(headers, message.Header{Key: hdrFilterQoS, Value: strconv.Itoa(int(sub.QoS))})
		}
		return &message.Message{
			Type:        message.Subscribe,
			ID:          uuidFromPacketID(pkt.PacketID),
			Destination: first.TopicFilter,
			QoS:         first.QoS,
			Headers:     headers,
		}, nil

	case encoding.UNSUBSCRIBE:
		pkt, err := encoding.ParseUnsubscribePacket311(fh, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
		}
		var headers message.Headers
		for _, filter := range pkt.TopicFilters[1:] {
			headers = append(headers, message.Header{Key: hdrFilter, Value: filter})
		}
		return &message.Message{
			Type:        message.Unsubscribe,
			ID:          uuidFromPacketID(pkt.PacketID),
			Destination: pkt.TopicFilters[0],
			Headers:     headers,
		}, nil

	case encoding.PUBACK:
		pkt, err := encoding.ParsePubackPacket311(fh, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
		}
		headers := message.Headers{}.Set(hdrAckKind, ackKindPuback)
		return &message.Message{Type: message.Ack, ID: uuidFromPacketID(pkt.PacketID), Headers: headers}, nil

	case encoding.UNSUBACK:
		pkt, err := encoding.ParseUnsubackPacket311(fh, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
		}
		headers := message.Headers{}.Set(hdrAckKind, ackKindUnsuback)
		return &message.Message{Type: message.Ack, ID: uuidFromPacketID(pkt.PacketID), Headers: headers}, nil

	case encoding.PINGREQ:
		return &message.Message{Type: message.Ping, ID: uuid.New()}, nil

	case encoding.DISCONNECT:
		_ = encoding.ParseDisconnectPacket311(fh)
		return &message.Message{Type: message.Disconnect, ID: uuid.New()}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fh.Type)
	}
}

// Encode appends msg's MQTT 3.1.1 wire representation to dst.
func (f *Framer) Encode(dst []byte, msg *message.Message) ([]byte, error) {
	var buf bytes.Buffer

	switch msg.Type {
	case message.Connack:
		returnCode := byte(encoding.ConnectAccepted311)
		if len(msg.Body) > 0 {
			returnCode = msg.Body[0]
		}
		sessionPresent, _ := msg.Headers.Get(hdrSessionPres)
		pkt := &encoding.ConnackPacket311{SessionPresent: sessionPresent == "true", ReturnCode: returnCode}
		if err := pkt.Encode(&buf); err != nil {
			return nil, err
		}

	case message.Publish:
		fh := encoding.FixedHeader{Type: encoding.PUBLISH, QoS: msg.QoS}
		if dup, _ := msg.Headers.Get(hdrDup); dup == "true" {
			fh.DUP = true
		}
		if retain, _ := msg.Headers.Get(hdrRetain); retain == "true" {
			fh.Retain = true
		}
		pkt := &encoding.PublishPacket311{
			FixedHeader: fh,
			TopicName:   msg.Destination,
			PacketID:    packetIDFromUUID(msg.ID),
			Payload:     msg.Body,
		}
		if err := pkt.Encode(&buf); err != nil {
			return nil, err
		}

	case message.Ack:
		kind, _ := msg.Headers.Get(hdrAckKind)
		switch kind {
		case ackKindSuback:
			codes := msg.Body
			if len(codes) == 0 {
				codes = []byte{encoding.ConnectAccepted311}
			}
			pkt := &encoding.SubackPacket311{PacketID: packetIDFromUUID(msg.ID), ReturnCodes: codes}
			if err := pkt.Encode(&buf); err != nil {
				return nil, err
			}
		case ackKindUnsuback:
			pkt := &encoding.UnsubackPacket311{PacketID: packetIDFromUUID(msg.ID)}
			if err := pkt.Encode(&buf); err != nil {
				return nil, err
			}
		default:
			pkt := &encoding.PubackPacket311{PacketID: packetIDFromUUID(msg.ID)}
			if err := pkt.Encode(&buf); err != nil {
				return nil, err
			}
		}

	case message.Ping:
		fh := encoding.FixedHeader{Type: encoding.PINGRESP}
		if err := fh.EncodeFixedHeader311(&buf); err != nil {
			return nil, err
		}

	case message.Disconnect:
		pkt := &encoding.DisconnectPacket311{}
		if err := pkt.Encode(&buf); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, msg.Type)
	}

	if f.maxBytes > 0 && uint32(buf.Len()) > f.maxBytes {
		return nil, ErrFrameTooLarge
	}
	return append(dst, buf.Bytes()...), nil
}
