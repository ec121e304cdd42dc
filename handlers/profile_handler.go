package handlers

import (
	"errors"

	"github.com/anjiri1684/referral_payments/middleware"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := h.Accounts.FindByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return h.fail(c, err)
	}
	return c.JSON(user)
}
