package encoding

// MQTT 3.1.1 packet decoders. Each Parse* function consumes the variable
// header and payload bytes that follow a FixedHeader already parsed by
// ParseFixedHeaderFromBytes, operating on the in-memory buffer the poller
// handed the connection rather than blocking on an io.Reader.

func readTwoByteInt(data []byte) (uint16, int, error) {
	if len(data) < 2 {
		return 0, 0, ErrUnexpectedEOF
	}
	return uint16(data[0])<<8 | uint16(data[1]), 2, nil
}

func readUTF8String(data []byte) (string, int, error) {
	length, n, err := readTwoByteInt(data)
	if err != nil {
		return "", 0, err
	}
	offset := n
	if len(data[offset:]) < int(length) {
		return "", 0, ErrUnexpectedEOF
	}
	s := string(data[offset : offset+int(length)])
	offset += int(length)
	return s, offset, nil
}

func readBinaryData(data []byte) ([]byte, int, error) {
	length, n, err := readTwoByteInt(data)
	if err != nil {
		return nil, 0, err
	}
	offset := n
	if len(data[offset:]) < int(length) {
		return nil, 0, ErrUnexpectedEOF
	}
	buf := make([]byte, length)
	copy(buf, data[offset:offset+int(length)])
	offset += int(length)
	return buf, offset, nil
}

// ParseConnectPacket311 decodes a CONNECT variable header + payload.
func ParseConnectPacket311(fh FixedHeader, data []byte) (*ConnectPacket311, error) {
	pkt := &ConnectPacket311{FixedHeader: fh}
	offset := 0

	protoName, n, err := readUTF8String(data[offset:])
	if err != nil {
		return nil, err
	}
	pkt.ProtocolName = protoName
	offset += n

	if len(data[offset:]) < 1 {
		return nil, ErrUnexpectedEOF
	}
	pkt.ProtocolVersion = ProtocolVersion(data[offset])
	offset++
	if pkt.ProtocolVersion != ProtocolVersion311 {
		return nil, ErrInvalidProtocolVersion
	}

	if len(data[offset:]) < 1 {
		return nil, ErrUnexpectedEOF
	}
	flags := data[offset]
	offset++
	if err := ValidateConnectFlags(flags); err != nil {
		return nil, err
	}
	pkt.CleanSession = flags&0x02 != 0
	pkt.WillFlag = flags&0x04 != 0
	pkt.WillQoS = QoS((flags & 0x18) >> 3)
	pkt.WillRetain = flags&0x20 != 0
	pkt.PasswordFlag = flags&0x40 != 0
	pkt.UsernameFlag = flags&0x80 != 0

	keepAlive, n, err := readTwoByteInt(data[offset:])
	if err != nil {
		return nil, err
	}
	pkt.KeepAlive = keepAlive
	offset += n

	clientID, n, err := readUTF8String(data[offset:])
	if err != nil {
		return nil, err
	}
	pkt.ClientID = clientID
	offset += n

	if pkt.WillFlag {
		willTopic, n, err := readUTF8String(data[offset:])
		if err != nil {
			return nil, err
		}
		pkt.WillTopic = willTopic
		offset += n

		willPayload, n, err := readBinaryData(data[offset:])
		if err != nil {
			return nil, err
		}
		pkt.WillPayload = willPayload
		offset += n
	}

	if pkt.UsernameFlag {
		username, n, err := readUTF8String(data[offset:])
		if err != nil {
			return nil, err
		}
		pkt.Username = username
		offset += n
	}

	if pkt.PasswordFlag {
		password, n, err := readBinaryData(data[offset:])
		if err != nil {
			return nil, err
		}
		pkt.Password = password
		offset += n
	}

	return pkt, nil
}

// ParsePublishPacket311 decodes a PUBLISH variable header + payload.
func ParsePublishPacket311(fh FixedHeader, data []byte) (*PublishPacket311, error) {
	pkt := &PublishPacket311{FixedHeader: fh}
	offset := 0

	topicName, n, err := readUTF8String(data[offset:])
	if err != nil {
		return nil, err
	}
	if err := ValidateTopicName(topicName); err != nil {
		return nil, err
	}
	pkt.TopicName = topicName
	offset += n

	if fh.QoS > QoS0 {
		packetID, n, err := readTwoByteInt(data[offset:])
		if err != nil {
			return nil, err
		}
		if err := ValidatePacketID(packetID, true); err != nil {
			return nil, err
		}
		pkt.PacketID = packetID
		offset += n
	}

	pkt.Payload = append([]byte(nil), data[offset:]...)
	return pkt, nil
}

// ParseSubscribePacket311 decodes a SUBSCRIBE variable header + payload.
func ParseSubscribePacket311(fh FixedHeader, data []byte) (*SubscribePacket311, error) {
	pkt := &SubscribePacket311{FixedHeader: fh}
	offset := 0

	packetID, n, err := readTwoByteInt(data[offset:])
	if err != nil {
		return nil, err
	}
	pkt.PacketID = packetID
	offset += n

	for offset < len(data) {
		filter, n, err := readUTF8String(data[offset:])
		if err != nil {
			return nil, err
		}
		offset += n

		if len(data[offset:]) < 1 {
			return nil, ErrUnexpectedEOF
		}
		qos := QoS(data[offset] & 0x03)
		offset++

		if err := ValidateTopicFilter(filter); err != nil {
			return nil, err
		}
		if !qos.IsValid() {
			return nil, ErrInvalidQoS
		}

		pkt.Subscriptions = append(pkt.Subscriptions, Subscription311{
			TopicFilter: filter,
			QoS:         qos,
		})
	}

	if len(pkt.Subscriptions) == 0 {
		return nil, ErrEmptySubscriptionList
	}

	return pkt, nil
}

// ParseUnsubscribePacket311 decodes an UNSUBSCRIBE variable header + payload.
func ParseUnsubscribePacket311(fh FixedHeader, data []byte) (*UnsubscribePacket311, error) {
	pkt := &UnsubscribePacket311{FixedHeader: fh}
	offset := 0

	packetID, n, err := readTwoByteInt(data[offset:])
	if err != nil {
		return nil, err
	}
	pkt.PacketID = packetID
	offset += n

	for offset < len(data) {
		filter, n, err := readUTF8String(data[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		if err := ValidateTopicFilter(filter); err != nil {
			return nil, err
		}
		pkt.TopicFilters = append(pkt.TopicFilters, filter)
	}

	if len(pkt.TopicFilters) == 0 {
		return nil, ErrEmptyUnsubscribeList
	}

	return pkt, nil
}

// packetID311 decodes the sole two-byte packet identifier carried by
// PUBACK/PUBREC/PUBREL/PUBCOMP/UNSUBACK.
func packetID311(data []byte) (uint16, error) {
	id, _, err := readTwoByteInt(data)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ParsePubackPacket311 decodes a PUBACK variable header.
func ParsePubackPacket311(fh FixedHeader, data []byte) (*PubackPacket311, error) {
	id, err := packetID311(data)
	if err != nil {
		return nil, err
	}
	return &PubackPacket311{FixedHeader: fh, PacketID: id}, nil
}

// ParseUnsubackPacket311 decodes an UNSUBACK variable header.
func ParseUnsubackPacket311(fh FixedHeader, data []byte) (*UnsubackPacket311, error) {
	id, err := packetID311(data)
	if err != nil {
		return nil, err
	}
	return &UnsubackPacket311{FixedHeader: fh, PacketID: id}, nil
}

// ParseDisconnectPacket311 decodes a DISCONNECT packet, which carries no
// variable header or payload in 3.1.1.
func ParseDisconnectPacket311(fh FixedHeader) *DisconnectPacket311 {
	return &DisconnectPacket311{FixedHeader: fh}
}
