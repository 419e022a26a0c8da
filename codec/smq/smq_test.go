package smq

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sptk/smq/encoding"
	"github.com/sptk/smq/types/message"
)

func TestFramerRoundTripEmptyBody(t *testing.T) {
	f := New(0)
	msg := &message.Message{
		Type:        message.Publish,
		ID:          uuid.New(),
		Destination: "/topic/news",
		QoS:         encoding.QoS0,
		Body:        []byte{},
	}

	buf, err := f.Encode(nil, msg)
	require.NoError(t, err)

	got, n, err := f.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Destination, got.Destination)
	assert.Empty(t, got.Body)
}

func TestFramerRoundTripWithHeadersAndBody(t *testing.T) {
	f := New(0)
	msg := &message.Message{
		Type:        message.Publish,
		ID:          uuid.New(),
		Destination: "/queue/work",
		QoS:         encoding.QoS1,
		Headers: message.Headers{
			{Key: "content-type", Value: "text/plain"},
			{Key: "trace-id", Value: "abc123"},
		},
		Body: []byte("hello"),
	}

	buf, err := f.Encode(nil, msg)
	require.NoError(t, err)

	got, n, err := f.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, msg.Headers, got.Headers)
	assert.Equal(t, msg.Body, got.Body)
}

func TestFramerDecodeShortInputReturnsNil(t *testing.T) {
	f := New(0)
	msg := &message.Message{
		Type:        message.Publish,
		ID:          uuid.New(),
		Destination: "/topic/a",
		Body:        []byte("payload"),
	}
	buf, err := f.Encode(nil, msg)
	require.NoError(t, err)

	for i := 0; i < len(buf); i++ {
		got, n, err := f.Decode(buf[:i])
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Zero(t, n)
	}
}

func TestFramerDecodeByteAtATimeMatchesOneShot(t *testing.T) {
	f := New(0)
	var wire []byte
	for _, body := range []string{"a", "b", "c"} {
		msg := &message.Message{
			Type:        message.Publish,
			ID:          uuid.New(),
			Destination: "/topic/news",
			Body:        []byte(body),
		}
		var err error
		wire, err = f.Encode(wire, msg)
		require.NoError(t, err)
	}

	var decoded []string
	var buf []byte
	for i := 0; i < len(wire); i++ {
		buf = append(buf, wire[i])
		for {
			msg, n, err := f.Decode(buf)
			require.NoError(t, err)
			if msg == nil {
				break
			}
			decoded = append(decoded, string(msg.Body))
			buf = buf[n:]
		}
	}

	assert.Equal(t, []string{"a", "b", "c"}, decoded)
}

func TestFramerEmptyDestinationRejected(t *testing.T) {
	f := New(0)
	_, err := f.Encode(nil, &message.Message{Type: message.Publish, ID: uuid.New()})
	assert.ErrorIs(t, err, ErrEmptyDestination)
}

func TestFramerFrameTooLarge(t *testing.T) {
	f := New(32)
	msg := &message.Message{
		Type:        message.Publish,
		ID:          uuid.New(),
		Destination: "/topic/news",
		Body:        make([]byte, 1024),
	}
	_, err := f.Encode(nil, msg)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
