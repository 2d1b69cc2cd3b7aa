package server

import (
	"errors"

	"cozytiny/internal/middleware"
	"cozytiny/internal/models"
	"cozytiny/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// connectedMessage is the first frame every feed client receives.
var connectedMessage = []byte(`{"type":"connected"}`)

// upgradeRequired rejects plain HTTP requests on websocket routes.
func (s *Server) upgradeRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
}

// FeedWebsocketHandler streams content events (post.created, post.updated,
// post.deleted, steps.replaced) to open CMS tabs.
// @Summary Live content feed
// @Tags feed
// @Router /ws/posts [get]
func (s *Server) FeedWebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		id := uuid.NewString()

		client, err := s.hub.Register(conn, id)
		if err != nil {
			reason := "unavailable"
			if errors.Is(err, notifications.ErrHubFull) {
				reason = "too many connections"
			}
			middleware.Logger.Warn("feed connection rejected", "client_id", id, "error", err)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
			_ = conn.Close()
			return
		}

		client.TrySend(connectedMessage)

		go client.WritePump()
		client.ReadPump()
	})
}
