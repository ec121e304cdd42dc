package routes

import (
	"github.com/anjiri1684/referral_payments/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	payments := api.Group("/payments")
	payments.Post("/create-checkout-session", h.CreateCheckoutSession)
	payments.Post("/create-payment-intent", h.CreatePaymentIntent)
	payments.Get("/session/:sessionId", h.GetSession)
	payments.Post("/webhook", h.StripeWebhook)
	payments.Get("/test", h.TestStripe)
	payments.Post("/create-payment-form", h.CreatePaymentForm)
}
