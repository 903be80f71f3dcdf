package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	applog "qrshop/internal/log"
	"qrshop/internal/services"
)

// RequireUser rejects requests without a logged-in session.
func RequireUser(s *Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := s.UserID(c)
		if id == 0 {
			applog.Security(c, "access.denied", nil)
			return fail(c, fiber.StatusUnauthorized, "Login required", nil)
		}
		c.Locals("user_id", id)
		return c.Next()
	}
}

func RequireAdmin(s *Sessions, auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := s.UserID(c)
		if id == 0 {
			applog.Security(c, "access.denied.admin", nil)
			return fail(c, fiber.StatusUnauthorized, "Login required", nil)
		}
		u, err := auth.User(c.UserContext(), id)
		if err != nil {
			return respondErr(c, err)
		}
		if !u.IsAdmin() {
			applog.Security(c, "access.denied.admin", map[string]any{"user_id": id})
			return fail(c, fiber.StatusForbidden, "Access denied", nil)
		}
		c.Locals("user_id", id)
		return c.Next()
	}
}

// RequireRelayToken guards the provider callback when the relay signs its
// requests with an HS256 bearer token. An empty secret disables the check.
func RequireRelayToken(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || raw == "" {
			applog.Security(c, "callback.token.missing", nil)
			return fail(c, fiber.StatusUnauthorized, "unauthorized", nil)
		}
		_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			applog.Security(c, "callback.token.invalid", map[string]any{"reason": err.Error()})
			return fail(c, fiber.StatusUnauthorized, "unauthorized", nil)
		}
		return c.Next()
	}
}
