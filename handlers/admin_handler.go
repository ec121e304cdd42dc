package handlers

import (
	"github.com/anjiri1684/referral_payments/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) AdminListReferrals(c *fiber.Ctx) error {
	p := pageFrom(c)
	referrals, total, err := h.Referrals.List(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	if referrals == nil {
		referrals = []models.Referral{}
	}
	return c.JSON(fiber.Map{
		"data": referrals,
		"meta": p.meta(total),
	})
}

func (h *Handler) AdminListWebhookEvents(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", models.WebhookStatusHandled, models.WebhookStatusIgnored, models.WebhookStatusFailed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status filter"})
	}

	p := pageFrom(c)
	events, total, err := h.Events.List(c.Context(), status, p.Limit, p.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	if events == nil {
		events = []models.WebhookEvent{}
	}
	return c.JSON(fiber.Map{
		"data": events,
		"meta": p.meta(total),
	})
}
