package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestParseToken(t *testing.T) {
	id := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	got, claims, err := ParseToken(secret, sign(t, jwt.MapClaims{"user_id": id.String(), "role": "user", "exp": exp}, secret))
	require.NoError(t, err)
	require.Equal(t, id, got)
	require.Equal(t, "user", claims["role"])

	_, _, err = ParseToken(secret, sign(t, jwt.MapClaims{"user_id": id.String(), "exp": exp}, "other-secret"))
	require.Error(t, err)

	_, _, err = ParseToken(secret, sign(t, jwt.MapClaims{"user_id": id.String(), "exp": time.Now().Add(-time.Hour).Unix()}, secret))
	require.Error(t, err)

	_, _, err = ParseToken(secret, sign(t, jwt.MapClaims{"user_id": "not-a-uuid", "exp": exp}, secret))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = ParseToken(secret, "")
	require.Error(t, err)
}

func TestProtectedAndAdminRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/me", Protected(secret), func(c *fiber.Ctx) error {
		id, err := UserID(c)
		if err != nil {
			return err
		}
		return c.SendString(id.String())
	})
	app.Get("/admin", Protected(secret), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	id := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()
	userToken := sign(t, jwt.MapClaims{"user_id": id.String(), "role": "user", "exp": exp}, secret)
	adminToken := sign(t, jwt.MapClaims{"user_id": id.String(), "role": "admin", "exp": exp}, secret)

	call := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, http.StatusBadRequest, call("/me", ""))
	require.Equal(t, http.StatusUnauthorized, call("/me", sign(t, jwt.MapClaims{"user_id": id.String(), "exp": exp}, "wrong")))
	require.Equal(t, http.StatusOK, call("/me", userToken))
	require.Equal(t, http.StatusForbidden, call("/admin", userToken))
	require.Equal(t, http.StatusOK, call("/admin", adminToken))
}

func TestUserIDWithoutToken(t *testing.T) {
	app := fiber.New()
	var err error
	app.Get("/", func(c *fiber.Ctx) error {
		_, err = UserID(c)
		return nil
	})
	_, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, testErr)
	require.ErrorIs(t, err, ErrInvalidToken)
}
