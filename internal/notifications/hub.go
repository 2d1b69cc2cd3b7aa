package notifications

import (
	"context"
	"errors"
	"sync"

	"cozytiny/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// DefaultMaxClients caps concurrent feed connections per instance.
const DefaultMaxClients = 1000

// ErrHubFull is returned by Register when the connection cap is reached.
var ErrHubFull = errors.New("feed connection limit reached")

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("feed hub is shut down")

// Hub holds the websocket clients watching the content feed on this instance.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	maxClients int
	closed     bool
	log        *observability.WSLogger
}

// NewHub creates a hub. maxClients <= 0 uses DefaultMaxClients.
func NewHub(maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		maxClients: maxClients,
	}
	h.log = observability.NewWSLogger(h.Name())
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "content feed" }

// Register adds a connection to the hub.
func (h *Hub) Register(conn *websocket.Conn, id string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= h.maxClients {
		return nil, ErrHubFull
	}
	client := NewClient(h, conn, id)
	h.clients[client] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), id)
	return client, nil
}

// UnregisterClient removes client and closes its send queue. Safe to call
// more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// Count reports the connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(message)
	}
}

// StartWiring connects the Notifier to this hub. With Redis, events from any
// instance reach local clients; without it, events published here are
// delivered directly.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	n.SetLocalFallback(h.BroadcastAll)
	return n.StartContentSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	})
}

// Shutdown closes every client's send queue; write pumps then send a close
// frame and drop the connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	return nil
}
