package message

import (
	"testing"
	"time"

	"github.com/sptk/smq/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	msg := New("/topic/news", []byte("hello"), encoding.QoS1)

	assert.Equal(t, Publish, msg.Type)
	assert.NotEqual(t, [16]byte{}, [16]byte(msg.ID), "id must be non-zero for any message")
	assert.Equal(t, "/topic/news", msg.Destination)
	assert.Equal(t, []byte("hello"), msg.Body)
	assert.False(t, msg.MessageExpirySet)
}

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a := New("/topic/news", []byte("a"), encoding.QoS0)
	b := New("/topic/news", []byte("b"), encoding.QoS0)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMessageExpiry(t *testing.T) {
	msg := New("/topic/news", []byte("x"), encoding.QoS0).WithExpiry(1)
	assert.False(t, msg.IsExpired())
	assert.Equal(t, uint32(1), msg.RemainingExpiry())

	msg.CreatedAt = time.Now().Add(-2 * time.Second)
	assert.True(t, msg.IsExpired())
	assert.Equal(t, uint32(0), msg.RemainingExpiry())
}

func TestMessageNoExpirySet(t *testing.T) {
	msg := New("/topic/news", []byte("x"), encoding.QoS0)
	assert.False(t, msg.IsExpired())
	assert.Equal(t, uint32(0), msg.RemainingExpiry())
}

func TestMarkAttemptSetsDUPAfterFirstRetry(t *testing.T) {
	msg := New("/queue/work", []byte("x"), encoding.QoS1)
	msg.MarkAttempt()
	assert.False(t, msg.DUP)
	assert.Equal(t, 1, msg.AttemptCount)

	msg.MarkAttempt()
	assert.True(t, msg.DUP)
	assert.Equal(t, 2, msg.AttemptCount)
}

func TestClone(t *testing.T) {
	original := New("/queue/work", []byte("payload"), encoding.QoS1)
	original.Headers = original.Headers.Set("content-type", "text/plain")

	clone := original.Clone()
	require.Equal(t, original.ID, clone.ID)
	assert.Equal(t, original.Body, clone.Body)
	assert.Equal(t, original.Headers, clone.Headers)

	clone.Body[0] = 'X'
	assert.NotEqual(t, original.Body[0], clone.Body[0], "clone must not alias the original body")
}

func TestHeadersPreserveInsertionOrder(t *testing.T) {
	var h Headers
	h = h.Set("a", "1")
	h = h.Set("b", "2")
	h = h.Set("a", "3")

	require.Len(t, h, 2)
	assert.Equal(t, "a", h[0].Key)
	assert.Equal(t, "3", h[0].Value)
	assert.Equal(t, "b", h[1].Key)

	v, ok := h.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}
