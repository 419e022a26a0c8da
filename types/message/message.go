package message

import (
	"time"

	"github.com/google/uuid"

	"github.com/sptk/smq/encoding"
)

// Type is the broker-level message type, distinct from the wire
// PacketType a particular Framer happens to encode it as.
type Type uint8

const (
	Connect Type = iota
	Connack
	Subscribe
	Unsubscribe
	Publish
	Ack
	Ping
	Disconnect
)

// Header is one entry of a Message's ordered header map. Headers are
// kept as a slice rather than a Go map so the wire encoding can
// reproduce the exact insertion order the producer used.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered key -> value map with at most one value per
// key, insertion order preserved.
type Headers []Header

// Get returns the first value for key, if present.
func (h Headers) Get(key string) (string, bool) {
	for _, entry := range h {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// Set appends a new header, or updates the value in place if key
// already exists (preserving its original position).
func (h Headers) Set(key, value string) Headers {
	for i, entry := range h {
		if entry.Key == key {
			h[i].Value = value
			return h
		}
	}
	return append(h, Header{Key: key, Value: value})
}

// Message is the broker's protocol-agnostic envelope: every Framer
// (native SMQ or MQTT-compatible) translates its wire packets to and
// from this shape before the Broker ever sees them.
type Message struct {
	Type        Type
	ID          uuid.UUID
	Destination string
	QoS         encoding.QoS
	Headers     Headers
	Body        []byte

	// Delivery bookkeeping, not part of the wire representation.
	DUP              bool
	CreatedAt        time.Time
	LastAttemptAt    time.Time
	AttemptCount     int
	ExpiryInterval   uint32
	MessageExpirySet bool
}

// New creates a Publish-type envelope with a freshly generated, non-zero
// id, the way a producer session mints one for every message that may
// require acknowledgement.
func New(destination string, body []byte, qos encoding.QoS) *Message {
	now := time.Now()
	return &Message{
		Type:          Publish,
		ID:            uuid.New(),
		Destination:   destination,
		QoS:           qos,
		Body:          body,
		CreatedAt:     now,
		LastAttemptAt: now,
	}
}

// WithExpiry sets a message-expiry interval in seconds.
func (m *Message) WithExpiry(seconds uint32) *Message {
	m.ExpiryInterval = seconds
	m.MessageExpirySet = seconds > 0
	return m
}

// IsExpired reports whether the message has outlived its configured
// expiry interval, if one was set.
func (m *Message) IsExpired() bool {
	if !m.MessageExpirySet || m.ExpiryInterval == 0 {
		return false
	}
	return time.Since(m.CreatedAt) >= time.Duration(m.ExpiryInterval)*time.Second
}

// RemainingExpiry returns the remaining expiry time in seconds, 0 if
// expired or no expiry is set.
func (m *Message) RemainingExpiry() uint32 {
	if !m.MessageExpirySet || m.ExpiryInterval == 0 {
		return 0
	}
	elapsed := uint32(time.Since(m.CreatedAt).Seconds())
	if elapsed >= m.ExpiryInterval {
		return 0
	}
	return m.ExpiryInterval - elapsed
}

// MarkAttempt records a delivery attempt, setting DUP once a message
// has been attempted more than once (mirrors the wire DUP flag an
// MQTT Framer sets on redelivery).
func (m *Message) MarkAttempt() {
	m.AttemptCount++
	m.LastAttemptAt = time.Now()
	if m.AttemptCount > 1 {
		m.DUP = true
	}
}

// Clone creates a deep copy of the message, used when a message is
// re-enqueued for redelivery after a missed ack.
func (m *Message) Clone() *Message {
	body := make([]byte, len(m.Body))
	copy(body, m.Body)

	headers := make(Headers, len(m.Headers))
	copy(headers, m.Headers)

	clone := *m
	clone.Body = body
	clone.Headers = headers
	return &clone
}
