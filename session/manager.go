package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Manager manages the session registry's lifecycle: creating entries on
// first connect, marking them disconnected on client departure, expiring
// stale entries, and returning a disconnected client's destination set
// on resume so the caller can resubscribe it.
type Manager struct {
	mu                sync.RWMutex
	store             Store
	activeSessions    map[string]*Session // clientID -> session for quick access
	expiryCheckTicker *time.Ticker
	stopCh            chan struct{}
	wg                sync.WaitGroup
	assignedIDPrefix  string
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	Store               Store
	ExpiryCheckInterval time.Duration
	AssignedIDPrefix    string
}

// NewManager creates a new session manager and starts its expiry checker.
func NewManager(config ManagerConfig) *Manager {
	if config.ExpiryCheckInterval == 0 {
		config.ExpiryCheckInterval = 30 * time.Second
	}
	if config.AssignedIDPrefix == "" {
		config.AssignedIDPrefix = "auto-"
	}

	m := &Manager{
		store:             config.Store,
		activeSessions:    make(map[string]*Session),
		expiryCheckTicker: time.NewTicker(config.ExpiryCheckInterval),
		stopCh:            make(chan struct{}),
		assignedIDPrefix:  config.AssignedIDPrefix,
	}

	m.wg.Add(1)
	go m.expiryChecker()

	return m
}

// CreateSession creates a new registry entry for a client-id, or marks an
// existing non-expired entry active again. The bool result reports
// whether a resumable prior entry existed (distinct from Resume, which
// also replays its destination set).
func (m *Manager) CreateSession(ctx context.Context, clientID string, expiryInterval uint32) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.Load(ctx, clientID)
	if err != nil && err != ErrSessionNotFound {
		return nil, false, err
	}

	if existing != nil && !existing.IsExpired() {
		existing.SetActive()
		if expiryInterval > 0 {
			existing.UpdateExpiryInterval(expiryInterval)
		}
		m.activeSessions[clientID] = existing
		if err := m.store.Save(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	s := New(clientID, expiryInterval)
	s.SetActive()
	m.activeSessions[clientID] = s

	if err := m.store.Save(ctx, s); err != nil {
		delete(m.activeSessions, clientID)
		return nil, false, err
	}

	return s, false, nil
}

// GetSession retrieves a session by client-id, checking the in-memory
// active set before falling through to the backing Store.
func (m *Manager) GetSession(ctx context.Context, clientID string) (*Session, error) {
	m.mu.RLock()
	if s, ok := m.activeSessions[clientID]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	return m.store.Load(ctx, clientID)
}

// Resume returns the destination set a disconnected client-id was
// subscribed to, so the Broker can resubscribe it in one call. It does
// not itself touch a SubscriptionTable — the caller owns that.
func (m *Manager) Resume(ctx context.Context, clientID string) (map[string]*DestinationSubscription, error) {
	s, err := m.GetSession(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.GetAllSubscriptions(), nil
}

// RecordSubscription persists a destination subscription against a
// client-id's registry entry, so it survives to the next Resume.
func (m *Manager) RecordSubscription(ctx context.Context, clientID, destination string, qos byte) error {
	s, err := m.GetSession(ctx, clientID)
	if err != nil {
		return err
	}
	s.AddSubscription(destination, qos)
	return m.store.Save(ctx, s)
}

// RecordUnsubscription removes a destination from a client-id's registry
// entry.
func (m *Manager) RecordUnsubscription(ctx context.Context, clientID, destination string) error {
	s, err := m.GetSession(ctx, clientID)
	if err != nil {
		return err
	}
	s.RemoveSubscription(destination)
	return m.store.Save(ctx, s)
}

// DisconnectSession marks a session as disconnected and resumable. A
// session with a zero expiry interval is deleted from the store instead.
func (m *Manager) DisconnectSession(ctx context.Context, clientID string) error {
	s, err := m.GetSession(ctx, clientID)
	if err != nil {
		return err
	}

	s.SetDisconnected()

	m.mu.Lock()
	delete(m.activeSessions, clientID)
	m.mu.Unlock()

	if s.GetExpiryInterval() == 0 {
		return m.store.Delete(ctx, clientID)
	}

	return m.store.Save(ctx, s)
}

// RemoveSession removes a session's registry entry entirely.
func (m *Manager) RemoveSession(ctx context.Context, clientID string) error {
	m.mu.Lock()
	delete(m.activeSessions, clientID)
	m.mu.Unlock()

	return m.store.Delete(ctx, clientID)
}

// GenerateClientID generates a unique client-id for clients that connect
// without one.
func (m *Manager) GenerateClientID(ctx context.Context) (string, error) {
	for i := 0; i < 10; i++ {
		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		clientID := m.assignedIDPrefix + hex.EncodeToString(b)

		exists, err := m.store.Exists(ctx, clientID)
		if err != nil {
			return "", err
		}
		if !exists {
			return clientID, nil
		}
	}

	return "", ErrSessionAlreadyExists
}

func (m *Manager) expiryChecker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.expiryCheckTicker.C:
			m.checkExpiredSessions()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) checkExpiredSessions() {
	ctx := context.Background()

	clientIDs, err := m.store.List(ctx)
	if err != nil {
		return
	}

	for _, clientID := range clientIDs {
		s, err := m.store.Load(ctx, clientID)
		if err != nil {
			continue
		}

		if s.IsExpired() {
			s.SetExpired()
			_ = m.store.Delete(ctx, clientID)
		}
	}
}

// Close closes the manager and stops its background expiry checker.
func (m *Manager) Close() error {
	close(m.stopCh)
	m.expiryCheckTicker.Stop()
	m.wg.Wait()

	return m.store.Close()
}

// GetActiveSessionCount returns the number of sessions currently active.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeSessions)
}

// GetAllActiveSessions returns all active session client-ids.
func (m *Manager) GetAllActiveSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clientIDs := make([]string, 0, len(m.activeSessions))
	for clientID := range m.activeSessions {
		clientIDs = append(clientIDs, clientID)
	}
	return clientIDs
}
