package routes

import (
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/anjiri1684/referral_payments/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(h.Settings.JWTSecret), middleware.AdminRequired())
	admin.Get("/referrals", h.AdminListReferrals)
	admin.Get("/webhook-events", h.AdminListWebhookEvents)
}
