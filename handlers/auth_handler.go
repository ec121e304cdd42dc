package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/referral_payments/models"
	"github.com/anjiri1684/referral_payments/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 72 * time.Hour

type RegisterRequest struct {
	FullName     string `json:"fullName" validate:"required,min=2"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	ReferralCode string `json:"referralCode,omitempty" validate:"omitempty,max=10"`
}

type UserResponse struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	ReferralCode *string   `json:"referralCode"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates an account. A referral code supplied at sign-up is redeemed
// right away; if that fails the account is still created and the reason is
// returned alongside it.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	user := &models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     models.RoleUser,
	}
	if err := h.Accounts.Create(c.Context(), user); err != nil {
		if errors.Is(err, services.ErrDuplicateKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
		}
		return h.fail(c, err)
	}

	response := fiber.Map{"user": userResponse(user)}
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		referral, err := h.Ledger.Redeem(c.Context(), user.ID, code)
		if err != nil {
			var se *services.Error
			if errors.As(err, &se) {
				response["referralError"] = se.Message
			} else {
				h.Logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("sign-up referral failed")
				response["referralError"] = "Referral could not be applied"
			}
		} else {
			response["referral"] = referral
		}
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.Accounts.FindByEmail(c.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
		}
		return h.fail(c, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	t, err := IssueToken(h.Settings.JWTSecret, user, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create token"})
	}
	return c.JSON(fiber.Map{"token": t})
}

// IssueToken signs the HS256 token that middleware.Protected accepts.
func IssueToken(secret string, user *models.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"exp":     now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID.String(),
		FullName:     u.FullName,
		Email:        u.Email,
		Role:         u.Role,
		ReferralCode: u.ReferralCode,
		CreatedAt:    u.CreatedAt,
	}
}
