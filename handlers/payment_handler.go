package handlers

import (
	"errors"
	"time"

	"github.com/anjiri1684/referral_payments/payments"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

type PaymentIntentRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency" validate:"omitempty,len=3"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type PaymentFormRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Description string          `json:"description"`
}

func (h *Handler) CreateCheckoutSession(c *fiber.Ctx) error {
	var req payments.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if len(req.LineItems) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Line items are required"})
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Success and cancel URLs are required"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	for _, item := range req.LineItems {
		if !item.Amount.IsPositive() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Line item amounts must be positive"})
		}
	}

	session, err := h.Payments.CreateCheckoutSession(c.Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(session)
}

func (h *Handler) CreatePaymentIntent(c *fiber.Ctx) error {
	var req PaymentIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if !req.Amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount is required"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	intent, err := h.Payments.CreatePaymentIntent(c.Context(), req.Amount, req.Currency, req.Metadata)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(intent)
}

func (h *Handler) GetSession(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	session, err := h.Payments.RetrieveSession(c.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, services.ErrSessionNotFound) {
			h.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": services.ErrSessionNotFound.Message})
	}
	return c.JSON(session)
}

// StripeWebhook must see the body exactly as Stripe sent it, so it is mounted
// without any body-rewriting middleware.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	result, err := h.Dispatcher.Dispatch(c.Context(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		var se *services.Error
		if errors.As(err, &se) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": se.Message})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Webhook error"})
	}
	return c.JSON(fiber.Map{
		"received": true,
		"eventId":  result.EventID,
		"status":   result.Status,
	})
}

// TestStripe reports how Stripe is configured and, when a key is present,
// proves it works by creating a throwaway payment intent.
func (h *Handler) TestStripe(c *fiber.Ctx) error {
	report := fiber.Map{
		"stripeConfigured":  h.Payments.Configured(),
		"webhookConfigured": h.Settings.StripeWebhookSecret != "",
		"environment":       h.Settings.Environment,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"secretKeyFormat":   h.Payments.KeyMode(),
	}

	if !h.Payments.Configured() {
		report["stripeConnection"] = "no_secret_key"
		report["help"] = "Set STRIPE_SECRET_KEY=sk_test_... in your .env file"
		return c.JSON(report)
	}

	intent, err := h.Payments.CreatePaymentIntent(c.Context(), decimal.NewFromInt(100), payments.DefaultCurrency, map[string]string{
		"test": "configuration_check",
	})
	if err != nil {
		report["stripeConnection"] = "failed"
		report["stripeError"] = err.Error()
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			report["stripeErrorType"] = stripeErr.Type
			report["stripeErrorCode"] = stripeErr.Code
		}
		return c.JSON(report)
	}

	report["stripeConnection"] = "success"
	report["testPaymentIntentId"] = intent.PaymentIntentID
	return c.JSON(report)
}

func (h *Handler) CreatePaymentForm(c *fiber.Ctx) error {
	req := PaymentFormRequest{Description: "Test payment"}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if !req.Amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount is required"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	intent, err := h.Payments.CreatePaymentIntent(c.Context(), req.Amount, req.Currency, map[string]string{
		"description": req.Description,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"paymentIntentId": intent.PaymentIntentID,
		"clientSecret":    intent.ClientSecret,
		"status":          intent.Status,
		"publishableKey":  h.Settings.StripePublishableKey,
	})
}
