package topic

import (
	"sync"
)

// Subscriber is anything a Subscription can deliver to. Implemented by
// the broker's connection wrapper; kept as an interface here so this
// package never needs to import network/broker types.
type Subscriber interface {
	ID() string
	Send(destination string, qos byte, payload []byte) error
}

// Subscription is the set of connections currently subscribed to one
// destination, plus (for queues) a round-robin cursor. Grounded on the
// original broker's SharedSubscriptionGroup, which kept the same
// atomic round-robin counter over a mutex-guarded subscriber slice.
type Subscription struct {
	Destination string
	Kind        Kind
	QoS         byte

	mu      sync.Mutex
	conns   []Subscriber
	cursor  int
}

func newSubscription(destination string, kind Kind, qos byte) *Subscription {
	return &Subscription{Destination: destination, Kind: kind, QoS: qos}
}

// add inserts conn if it is not already present. Returns false if it
// was already subscribed (at-most-once insertion per connection).
func (s *Subscription) add(conn Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if c.ID() == conn.ID() {
			return false
		}
	}
	s.conns = append(s.conns, conn)
	return true
}

// remove drops conn from this subscription. Returns true if it was
// present, and the remaining subscriber count.
func (s *Subscription) remove(connID string) (removed bool, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c.ID() == connID {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			if s.cursor > i {
				s.cursor--
			}
			return true, len(s.conns)
		}
	}
	return false, len(s.conns)
}

// Size returns the number of connections currently subscribed.
func (s *Subscription) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Snapshot returns a copy of the currently subscribed connections, in
// fan-out order for a topic.
func (s *Subscription) Snapshot() []Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscriber, len(s.conns))
	copy(out, s.conns)
	return out
}

// next returns the connection the round-robin cursor currently points
// at and advances the cursor by one, wrapping around. ok is false for
// an empty subscription.
func (s *Subscription) next() (Subscriber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil, false
	}
	c := s.conns[s.cursor%len(s.conns)]
	s.cursor = (s.cursor + 1) % len(s.conns)
	return c, true
}

// RoundRobinDeliver offers a message to subscribers one at a time
// starting at the round-robin cursor, advancing the cursor after each
// attempt regardless of outcome. It stops as soon as accept returns
// true. If accept fails for every subscriber in one full pass, it
// returns false so the caller can retain the message.
func (s *Subscription) RoundRobinDeliver(accept func(Subscriber) bool) bool {
	size := s.Size()
	for i := 0; i < size; i++ {
		c, ok := s.next()
		if !ok {
			return false
		}
		if accept(c) {
			return true
		}
	}
	return false
}
