package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub(0)

	a, err := hub.Register(nil, "a")
	require.NoError(t, err)
	b, err := hub.Register(nil, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.BroadcastAll([]byte(`{"type":"post.created"}`))
	assert.Equal(t, `{"type":"post.created"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"post.created"}`, string(<-b.Send))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())
	_, open := <-a.Send
	assert.False(t, open)

	_ = hub.Shutdown(context.Background())
}

func TestHub_ConnectionLimit(t *testing.T) {
	hub := NewHub(1)
	_, err := hub.Register(nil, "a")
	require.NoError(t, err)

	_, err = hub.Register(nil, "b")
	assert.ErrorIs(t, err, ErrHubFull)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())
	_, err = hub.Register(nil, "c")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub(0)
	c, err := hub.Register(nil, "slow")
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	require.Len(t, c.Send, sendBuffer)

	var last []byte
	for len(c.Send) > 0 {
		last = <-c.Send
	}
	assert.JSONEq(t, `{"type":"resync","reason":"buffer_full"}`, string(last))

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
	_ = hub.Shutdown(context.Background())
}
