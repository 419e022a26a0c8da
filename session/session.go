package session

import (
	"sync"
	"time"
)

// State represents the session state.
type State byte

const (
	StateNew          State = iota // newly created, never seen a connection
	StateActive                    // bound to a live Connection
	StateDisconnected              // owning Connection gone, registry entry kept for resume
	StateExpired                   // past its expiry interval, eligible for removal
)

// DestinationSubscription records one destination a client was subscribed
// to, so it can be replayed on Broker.Resume.
type DestinationSubscription struct {
	Destination  string
	QoS          byte
	SubscribedAt time.Time
}

// Session is the registry's bookkeeping for one client-id: which
// destinations it was subscribed to the last time it was connected. This
// is not the broker's live Connection state — it is what survives a
// disconnect (and, with a durable Store, a broker restart) so a
// reconnecting client-id can ask to be resubscribed in one call.
type Session struct {
	mu sync.RWMutex

	ClientID       string
	State          State
	ExpiryInterval uint32 // seconds; 0 = no expiry
	CreatedAt      time.Time
	LastAccessedAt time.Time
	DisconnectedAt time.Time

	Subscriptions map[string]*DestinationSubscription // destination -> subscription
}

// New creates a new session registry entry for a client-id.
func New(clientID string, expiryInterval uint32) *Session {
	now := time.Now()
	return &Session{
		ClientID:       clientID,
		State:          StateNew,
		ExpiryInterval: expiryInterval,
		CreatedAt:      now,
		LastAccessedAt: now,
		Subscriptions:  make(map[string]*DestinationSubscription),
	}
}

// SetActive marks the session as bound to a live connection.
func (s *Session) SetActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateActive
	s.LastAccessedAt = time.Now()
}

// SetDisconnected marks the session as disconnected but resumable.
func (s *Session) SetDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateDisconnected
	s.DisconnectedAt = time.Now()
}

// SetExpired marks the session as expired.
func (s *Session) SetExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateExpired
}

// IsExpired reports whether the session has outlived its expiry interval.
func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ExpiryInterval == 0 {
		return false
	}
	if s.State == StateDisconnected {
		return time.Since(s.DisconnectedAt) > time.Duration(s.ExpiryInterval)*time.Second
	}
	return s.State == StateExpired
}

// Touch updates the last-accessed time.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAccessedAt = time.Now()
}

// AddSubscription records a destination subscription for replay on resume.
func (s *Session) AddSubscription(destination string, qos byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subscriptions[destination] = &DestinationSubscription{
		Destination:  destination,
		QoS:          qos,
		SubscribedAt: time.Now(),
	}
}

// RemoveSubscription drops a recorded destination subscription.
func (s *Session) RemoveSubscription(destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Subscriptions, destination)
}

// GetSubscription returns a recorded subscription by destination.
func (s *Session) GetSubscription(destination string) (*DestinationSubscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.Subscriptions[destination]
	return sub, ok
}

// GetAllSubscriptions returns a copy of every recorded subscription,
// the set Broker.Resume replays against the SubscriptionTable.
func (s *Session) GetAllSubscriptions() map[string]*DestinationSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make(map[string]*DestinationSubscription, len(s.Subscriptions))
	for k, v := range s.Subscriptions {
		subs[k] = v
	}
	return subs
}

// ClearSubscriptions removes every recorded subscription.
func (s *Session) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subscriptions = make(map[string]*DestinationSubscription)
}

// Clear removes every recorded subscription; state and timestamps are
// left unchanged.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subscriptions = make(map[string]*DestinationSubscription)
}

// GetState returns the current state.
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// GetClientID returns the client-id.
func (s *Session) GetClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ClientID
}

// GetExpiryInterval returns the expiry interval in seconds.
func (s *Session) GetExpiryInterval() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ExpiryInterval
}

// UpdateExpiryInterval updates the session's expiry interval.
func (s *Session) UpdateExpiryInterval(interval uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExpiryInterval = interval
}
