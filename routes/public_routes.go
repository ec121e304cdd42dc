package routes

import (
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func PublicRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// Register mounts every route group on app.
func Register(app *fiber.App, h *handlers.Handler) {
	PublicRoutes(app)
	AuthRoutes(app, h)
	ProfileRoutes(app, h)
	ReferralRoutes(app, h)
	PaymentRoutes(app, h)
	AdminRoutes(app, h)
	WebsocketRoutes(app, h)
}
