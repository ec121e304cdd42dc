package routes

import (
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/anjiri1684/referral_payments/middleware"
	"github.com/gofiber/fiber/v2"
)

func ProfileRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	profile := api.Group("/profile/me", middleware.Protected(h.Settings.JWTSecret))
	profile.Get("", h.GetProfile)
}
