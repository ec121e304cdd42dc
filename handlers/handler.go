package handlers

import (
	"context"
	"errors"
	"math"
	"strconv"

	config "github.com/anjiri1684/referral_payments/configs"
	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/payments"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/anjiri1684/referral_payments/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

type Accounts interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type PaymentProvider interface {
	Configured() bool
	KeyMode() string
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*payments.SessionDetails, error)
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payments.PaymentIntent, error)
}

type ReferralLister interface {
	List(ctx context.Context, limit, offset int) ([]models.Referral, int64, error)
}

type WebhookEventLister interface {
	List(ctx context.Context, status string, limit, offset int) ([]models.WebhookEvent, int64, error)
}

type Handler struct {
	Ledger     *services.LedgerService
	Dispatcher *services.WebhookDispatcher
	Payments   PaymentProvider
	Accounts   Accounts
	Referrals  ReferralLister
	Events     WebhookEventLister
	Hub        *websocket.Hub
	Settings   config.Settings
	Logger     zerolog.Logger
}

// fail writes err using the services.Error kind to pick the status code.
// Anything unclassified is logged and reported as a generic 500.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var se *services.Error
	if !errors.As(err, &se) {
		h.Logger.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	status := statusFor(se.Kind)
	if status >= fiber.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", c.Path()).Str("code", se.Code).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": se.Message})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindConflict:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

type page struct {
	Page   int
	Limit  int
	Offset int
}

func pageFrom(c *fiber.Ctx) page {
	p, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if p < 1 {
		p = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page{Page: p, Limit: limit, Offset: (p - 1) * limit}
}

func (p page) meta(total int64) fiber.Map {
	return fiber.Map{
		"total":        total,
		"total_pages":  int(math.Ceil(float64(total) / float64(p.Limit))),
		"current_page": p.Page,
	}
}
