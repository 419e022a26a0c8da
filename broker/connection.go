// Package broker implements the Connection state machine, the
// client-id registry, and the Broker delivery loop described in
// spec §4.3–§4.6: one network.Connection wrapped with a framer.Framer
// drives NEW -> AUTHENTICATING -> ACTIVE -> CLOSING -> CLOSED, and the
// Broker fans incoming Publish messages out to topic.Table
// subscribers through a bounded send-side worker pool.
package broker

import (
	"sync"
	"sync/atomic"

	"github.com/sptk/smq/encoding"
	"github.com/sptk/smq/framer"
	"github.com/sptk/smq/network"
	"github.com/sptk/smq/topic"
	"github.com/sptk/smq/types/message"
)

// State is the Connection lifecycle state from spec §4.3.
type State int32

const (
	StateNew State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection wraps one network.Connection with its negotiated Framer
// and tracks the client identity the ACTIVE state is keyed on.
type Connection struct {
	transport *network.Connection
	framer    framer.Framer

	state atomic.Int32

	mu       sync.RWMutex
	clientID string
	username string

	destinations map[string]struct{} // destinations this conn is currently subscribed to

	sendMu sync.Mutex
	inbuf  []byte
}

var _ topic.Subscriber = (*Connection)(nil)

// NewConnection wraps transport with f, starting in StateNew.
func NewConnection(transport *network.Connection, f framer.Framer) *Connection {
	c := &Connection{
		transport:    transport,
		framer:       f,
		destinations: make(map[string]struct{}),
	}
	c.state.Store(int32(StateNew))
	return c
}

// ID satisfies topic.Subscriber, identifying this connection by its
// transport-assigned connection id (stable for the lifetime of the
// socket, independent of client id).
func (c *Connection) ID() string { return c.transport.ID() }

func (c *Connection) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

func (c *Connection) SetClientID(id string) {
	c.mu.Lock()
	c.clientID = id
	c.mu.Unlock()
}

func (c *Connection) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Connection) SetUsername(u string) {
	c.mu.Lock()
	c.username = u
	c.mu.Unlock()
}

func (c *Connection) State() State { return State(c.state.Load()) }

// TransitionAuthenticating moves NEW -> AUTHENTICATING.
func (c *Connection) TransitionAuthenticating() bool {
	return c.state.CompareAndSwap(int32(StateNew), int32(StateAuthenticating))
}

// TransitionActive moves AUTHENTICATING -> ACTIVE.
func (c *Connection) TransitionActive() bool {
	return c.state.CompareAndSwap(int32(StateAuthenticating), int32(StateActive))
}

// TransitionClosing moves to CLOSING from any non-terminal state,
// idempotently: concurrent callers racing to close never see it fail
// for a reason other than "already closed".
func (c *Connection) TransitionClosing() bool {
	for {
		cur := State(c.state.Load())
		if cur == StateClosing || cur == StateClosed {
			return false
		}
		if c.state.CompareAndSwap(int32(cur), int32(StateClosing)) {
			return true
		}
	}
}

func (c *Connection) TransitionClosed() {
	c.state.Store(int32(StateClosed))
}

func (c *Connection) IsActive() bool { return c.State() == StateActive }

func (c *Connection) trackDestination(dest string) {
	c.mu.Lock()
	c.destinations[dest] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) untrackDestination(dest string) {
	c.mu.Lock()
	delete(c.destinations, dest)
	c.mu.Unlock()
}

// Send implements topic.Subscriber: it encodes and writes a Publish
// message for destination to the wire. It is called by the Broker's
// send pool for topic fan-out and inline from the publishing
// connection's read loop for queue delivery, so sendMu serializes
// those writes with each other and with control-plane messages (e.g.
// a SUBACK) on the same connection.
func (c *Connection) Send(destination string, qos byte, payload []byte) error {
	return c.SendMessage(&message.Message{
		Type:        message.Publish,
		Destination: destination,
		QoS:         encoding.QoS(qos),
		Body:        payload,
	})
}

// SendMessage writes any Message (Publish, Connack, Ack, Ping,
// Disconnect) through this connection's Framer. Used both by the
// Broker's delivery pool and by the read loop for direct control-plane
// replies (CONNACK, PINGRESP, SUBACK/UNSUBACK/PUBACK).
func (c *Connection) SendMessage(msg *message.Message) error {
	if c.State() == StateClosing || c.State() == StateClosed {
		return ErrConnectionClosing
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	out, err := c.framer.Encode(nil, msg)
	if err != nil {
		return err
	}
	_, err = c.transport.Write(out)
	return err
}

// ReadMessage blocks until one full Message has been decoded from the
// transport, growing the internal buffer as needed. It returns
// io.EOF-wrapping errors from the underlying transport unchanged so
// callers can distinguish a clean close from a frame violation.
func (c *Connection) ReadMessage() (*message.Message, error) {
	readBuf := make([]byte, 4096)
	for {
		msg, consumed, err := c.framer.Decode(c.inbuf)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			c.inbuf = c.inbuf[consumed:]
			return msg, nil
		}

		n, err := c.transport.Read(readBuf)
		if n > 0 {
			c.inbuf = append(c.inbuf, readBuf[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (c *Connection) Close() error {
	c.TransitionClosing()
	err := c.transport.Close()
	c.TransitionClosed()
	return err
}
