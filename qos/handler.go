package qos

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sptk/smq/types/message"
)

// Config holds the AckTracker's timing policy.
type Config struct {
	AckTimeout    time.Duration
	MaxAckMisses  int
	SweepInterval time.Duration
}

// DefaultConfig returns the AT_LEAST_ONCE ack policy defaults: a 30
// second ack window and 3 misses before a subscriber is considered
// unresponsive.
func DefaultConfig() *Config {
	return &Config{
		AckTimeout:    30 * time.Second,
		MaxAckMisses:  3,
		SweepInterval: 5 * time.Second,
	}
}

type pendingDelivery struct {
	msg         *message.Message
	destination string
	connID      string
	deadline    time.Time
}

// AckTracker implements the AT_LEAST_ONCE delivery contract: every
// delivery to a subscriber is tracked until it is acked by message id
// within the configured window; a miss re-enqueues the message for
// redelivery to its destination and counts against the subscriber. A
// subscriber that racks up MaxAckMisses consecutive misses is reported
// as unresponsive so the broker can close its connection. Grounded on
// the original broker's QoS Handler retry/cleanup loop pair, trimmed
// to the single at-least-once path (no QoS 2 completion).
type AckTracker struct {
	config *Config

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingDelivery
	misses  map[string]int // connID -> consecutive ack misses

	onMiss        func(msg *message.Message, destination string)
	onUnresponsive func(connID string)

	ctx    chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewAckTracker creates a tracker and starts its sweep loop.
// onMiss is invoked (re-enqueue) for every delivery whose ack window
// expires. onUnresponsive is invoked once a connection's consecutive
// miss count reaches config.MaxAckMisses.
func NewAckTracker(config *Config, onMiss func(*message.Message, string), onUnresponsive func(string)) *AckTracker {
	if config == nil {
		config = DefaultConfig()
	}
	t := &AckTracker{
		config:         config,
		pending:        make(map[uuid.UUID]*pendingDelivery),
		misses:         make(map[string]int),
		onMiss:         onMiss,
		onUnresponsive: onUnresponsive,
		ctx:            make(chan struct{}),
	}
	t.wg.Add(1)
	go t.sweepLoop()
	return t
}

// Track registers a delivery attempt awaiting acknowledgement.
func (t *AckTracker) Track(msg *message.Message, destination, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.pending[msg.ID] = &pendingDelivery{
		msg:         msg,
		destination: destination,
		connID:      connID,
		deadline:    time.Now().Add(t.config.AckTimeout),
	}
}

// Ack acknowledges a pending delivery by message id, resetting the
// owning connection's miss count.
func (t *AckTracker) Ack(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok {
		return ErrUnknownAck
	}
	delete(t.pending, id)
	t.misses[p.connID] = 0
	return nil
}

// Forget drops every pending delivery and miss count for a connection,
// called when it disconnects so its deliveries stop being tracked.
func (t *AckTracker) Forget(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.pending {
		if p.connID == connID {
			delete(t.pending, id)
		}
	}
	delete(t.misses, connID)
}

// PendingCount returns the number of deliveries currently awaiting ack.
func (t *AckTracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *AckTracker) sweepLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *AckTracker) sweep() {
	now := time.Now()

	t.mu.Lock()
	var expired []*pendingDelivery
	for id, p := range t.pending {
		if now.After(p.deadline) {
			expired = append(expired, p)
			delete(t.pending, id)
		}
	}

	var unresponsive []string
	for _, p := range expired {
		t.misses[p.connID]++
		if t.misses[p.connID] >= t.config.MaxAckMisses {
			unresponsive = append(unresponsive, p.connID)
		}
	}
	t.mu.Unlock()

	for _, p := range expired {
		if t.onMiss != nil {
			t.onMiss(p.msg, p.destination)
		}
	}
	for _, connID := range unresponsive {
		if t.onUnresponsive != nil {
			t.onUnresponsive(connID)
		}
		t.Forget(connID)
	}
}

// Close stops the sweep loop.
func (t *AckTracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.ctx)
	t.wg.Wait()
	return nil
}
