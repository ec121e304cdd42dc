package routes

import (
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/gofiber/fiber/v2"
)

func WebsocketRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	api.Use("/ws", h.WebsocketAuth)
	api.Get("/ws/referrals", h.ReferralFeed())
}
