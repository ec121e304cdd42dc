package handlers

import (
	"github.com/anjiri1684/referral_payments/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateReferralRequest struct {
	ReferralCode string `json:"referralCode" validate:"omitempty,max=10"`
}

type UseReferralRequest struct {
	ReferralCode string `json:"referralCode"`
}

type UseRewardsRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) CreateReferral(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req CreateReferralRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	code, err := h.Ledger.AssignReferralCode(c.Context(), userID, req.ReferralCode)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message":      "Referral code created successfully",
		"referralCode": code,
	})
}

func (h *Handler) UseReferral(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req UseReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	referral, err := h.Ledger.Redeem(c.Context(), userID, req.ReferralCode)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Referral applied successfully",
		"referral": referral,
	})
}

func (h *Handler) GetReferralStats(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	stats, err := h.Ledger.Stats(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}

func (h *Handler) UseRewards(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req UseRewardsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	result, err := h.Ledger.SpendRewards(c.Context(), userID, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message":          "Rewards used successfully",
		"amountUsed":       result.AmountUsed,
		"remainingRewards": result.RemainingRewards,
	})
}
