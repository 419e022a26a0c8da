package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := New("client1", 300)
	require.NotNil(t, s)
	assert.Equal(t, "client1", s.GetClientID())
	assert.Equal(t, StateNew, s.GetState())
	assert.Equal(t, uint32(300), s.GetExpiryInterval())
	assert.Empty(t, s.GetAllSubscriptions())
}

func TestSessionActiveDisconnectedExpired(t *testing.T) {
	s := New("client1", 0)

	s.SetActive()
	assert.Equal(t, StateActive, s.GetState())

	s.SetDisconnected()
	assert.Equal(t, StateDisconnected, s.GetState())
	assert.False(t, s.DisconnectedAt.IsZero())

	s.SetExpired()
	assert.Equal(t, StateExpired, s.GetState())
}

func TestSessionIsExpiredNoExpiryInterval(t *testing.T) {
	s := New("client1", 0)
	s.SetDisconnected()
	assert.False(t, s.IsExpired())
}

func TestSessionIsExpiredAfterInterval(t *testing.T) {
	s := New("client1", 1)
	s.SetDisconnected()
	s.DisconnectedAt = time.Now().Add(-2 * time.Second)
	assert.True(t, s.IsExpired())
}

func TestSessionIsExpiredWithinInterval(t *testing.T) {
	s := New("client1", 60)
	s.SetDisconnected()
	assert.False(t, s.IsExpired())
}

func TestSessionTouch(t *testing.T) {
	s := New("client1", 0)
	first := s.LastAccessedAt
	time.Sleep(time.Millisecond)
	s.Touch()
	assert.True(t, s.LastAccessedAt.After(first))
}

func TestSessionAddRemoveSubscription(t *testing.T) {
	s := New("client1", 0)

	s.AddSubscription("/topic/news", 1)
	s.AddSubscription("/queue/work", 0)

	sub, ok := s.GetSubscription("/topic/news")
	require.True(t, ok)
	assert.Equal(t, byte(1), sub.QoS)

	all := s.GetAllSubscriptions()
	assert.Len(t, all, 2)

	s.RemoveSubscription("/topic/news")
	_, ok = s.GetSubscription("/topic/news")
	assert.False(t, ok)
	assert.Len(t, s.GetAllSubscriptions(), 1)
}

func TestSessionGetAllSubscriptionsReturnsCopy(t *testing.T) {
	s := New("client1", 0)
	s.AddSubscription("/topic/news", 1)

	all := s.GetAllSubscriptions()
	all["/topic/extra"] = &DestinationSubscription{Destination: "/topic/extra"}

	assert.Len(t, s.GetAllSubscriptions(), 1)
}

func TestSessionClearSubscriptions(t *testing.T) {
	s := New("client1", 0)
	s.AddSubscription("/topic/news", 1)
	s.AddSubscription("/queue/work", 0)

	s.ClearSubscriptions()
	assert.Empty(t, s.GetAllSubscriptions())
}

func TestSessionUpdateExpiryInterval(t *testing.T) {
	s := New("client1", 60)
	s.UpdateExpiryInterval(120)
	assert.Equal(t, uint32(120), s.GetExpiryInterval())
}
