package notifications

import (
	"context"
	"time"

	"cozytiny/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Feed clients only send pings and close frames.
	maxMessageSize = 1024

	sendBuffer = 64
)

// WSHub is an interface for hubs that manage clients
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is a middleman between the websocket connection and a hub.
type Client struct {
	Hub WSHub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// ID identifies the connection in logs.
	ID string

	log *observability.WSLogger
}

// NewClient creates a new Client instance
func NewClient(hub WSHub, conn *websocket.Conn, id string) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		ID:   id,
		Send: make(chan []byte, sendBuffer),
		log:  observability.NewWSLogger(hub.Name()),
	}
}

// ReadPump drains the connection so pongs and close frames are processed.
// It returns when the peer goes away.
func (c *Client) ReadPump() {
	reason := "closed"
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
		c.log.LogDisconnect(context.Background(), c.ID, reason)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				reason = "error"
				c.log.LogError(context.Background(), c.ID, err, "read")
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// resyncMessage tells a client it missed events and must re-fetch.
var resyncMessage = []byte(`{"type":"resync","reason":"buffer_full"}`)

// TrySend queues a message without blocking. When the buffer is full the
// message is dropped, and the oldest queued message is replaced by a resync
// notice so a slow client learns it fell behind.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	select {
	case <-c.Send:
	default:
	}
	select {
	case c.Send <- resyncMessage:
	default:
	}
}
