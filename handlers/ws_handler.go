package handlers

import (
	"github.com/anjiri1684/referral_payments/middleware"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const wsUserKey = "ws_user_id"

// WebsocketAuth authenticates the upgrade request. Browsers cannot set headers
// on a websocket handshake, so the JWT travels in the token query parameter.
func (h *Handler) WebsocketAuth(c *fiber.Ctx) error {
	if !websocketcontrib.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	userID, _, err := middleware.ParseToken(h.Settings.JWTSecret, c.Query("token"))
	if err != nil {
		h.Logger.Debug().Err(err).Msg("websocket auth failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	c.Locals(wsUserKey, userID)
	return c.Next()
}

// ReferralFeed keeps the connection registered with the hub until the client
// goes away. Inbound messages are read and discarded.
func (h *Handler) ReferralFeed() fiber.Handler {
	return websocketcontrib.New(func(conn *websocketcontrib.Conn) {
		userID, ok := conn.Locals(wsUserKey).(uuid.UUID)
		if !ok {
			_ = conn.Close()
			return
		}

		// Written before registering; after that only the hub writes.
		if err := conn.WriteJSON(fiber.Map{"type": "connected", "userId": userID}); err != nil {
			_ = conn.Close()
			return
		}

		client := h.Hub.Register(userID, conn)
		defer func() {
			h.Hub.Unregister(client)
			_ = conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocketcontrib.IsUnexpectedCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
					h.Logger.Debug().Err(err).Str("user_id", userID.String()).Msg("websocket read error")
				}
				return
			}
		}
	})
}
