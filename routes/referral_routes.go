package routes

import (
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/anjiri1684/referral_payments/middleware"
	"github.com/gofiber/fiber/v2"
)

func ReferralRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	referrals := api.Group("/referrals", middleware.Protected(h.Settings.JWTSecret))
	referrals.Post("/create", h.CreateReferral)
	referrals.Post("/use", h.UseReferral)
	referrals.Get("/stats", h.GetReferralStats)
	referrals.Post("/use-rewards", h.UseRewards)
}
