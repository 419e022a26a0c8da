package topic

import "sync"

// Table is the process-wide mapping from destination name to
// Subscription, read-heavy and protected by a reader/writer lock; each
// Subscription carries its own mutex so concurrent mutation of one
// subscription's connection set never blocks lookups for another.
type Table struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewTable() *Table {
	return &Table{subs: make(map[string]*Subscription)}
}

// Subscribe creates the Subscription for destination if it doesn't
// exist yet, classifying it as queue or topic by prefix, and inserts
// conn into it (at most once).
func (t *Table) Subscribe(conn Subscriber, destination string, qos byte) *Subscription {
	t.mu.Lock()
	sub, ok := t.subs[destination]
	if !ok {
		sub = newSubscription(destination, ClassifyDestination(destination), qos)
		t.subs[destination] = sub
	}
	t.mu.Unlock()

	sub.add(conn)
	return sub
}

// Resolve looks up a Subscription by exact destination name.
func (t *Table) Resolve(destination string) (*Subscription, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sub, ok := t.subs[destination]
	return sub, ok
}

// Unsubscribe removes conn from destination's Subscription. The
// caller (the broker, which owns retained-message state) decides
// whether to Drop the now-subscriberless destination — a queue with
// a retained backlog must stay in the table.
func (t *Table) Unsubscribe(connID string, destination string) (wasSubscribed bool, remaining int) {
	t.mu.RLock()
	sub, ok := t.subs[destination]
	t.mu.RUnlock()
	if !ok {
		return false, 0
	}
	return sub.remove(connID)
}

// Remove drops conn from every Subscription it belongs to, run on
// disconnect. Returns the destinations it was removed from along with
// each Subscription's remaining subscriber count.
func (t *Table) Remove(connID string) map[string]int {
	t.mu.RLock()
	subs := make([]*Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.RUnlock()

	removedFrom := make(map[string]int)
	for _, sub := range subs {
		if removed, remaining := sub.remove(connID); removed {
			removedFrom[sub.Destination] = remaining
		}
	}
	return removedFrom
}

// Drop removes a destination's Subscription entirely, whether or not
// it currently has subscribers. Callers must have already confirmed
// no retained messages remain for it.
func (t *Table) Drop(destination string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, destination)
}

// EnsureRetainTarget returns (creating if necessary) the Subscription
// for a destination that has no live subscribers yet but needs a
// table entry to retain messages against, e.g. a queue published to
// before anyone has subscribed.
func (t *Table) EnsureRetainTarget(destination string, qos byte) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subs[destination]
	if !ok {
		sub = newSubscription(destination, ClassifyDestination(destination), qos)
		t.subs[destination] = sub
	}
	return sub
}

// Len returns the number of destinations currently tracked.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
